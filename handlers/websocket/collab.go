package websocket

import (
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/scottdaly/drkr/core"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(err error, payload map[string]any)

// DocumentLookup reports whether a document is open.
type DocumentLookup interface {
	Get(id string) (core.Document, error)
}

// Hub pushes committed document changes to sockets that joined the
// document's room. It implements core.ChangeNotifier.
type Hub struct {
	srv      *socketio.Server
	docs     DocumentLookup
	mu       sync.RWMutex
	watchers map[string]map[socketio.SocketId]struct{}
}

func NewHub(docs DocumentLookup) *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin: []any{
			"tauri://localhost",
			localhostOrigin,
		},
		Credentials: true,
	})

	h := &Hub{
		srv:      socketio.NewServer(nil, opts),
		docs:     docs,
		watchers: make(map[string]map[socketio.SocketId]struct{}),
	}
	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	h.srv.On("connection", h.onConnection)
	return h
}

func (h *Hub) Server() *socketio.Server {
	return h.srv
}

// Watchers returns the number of sockets watching each document.
func (h *Hub) Watchers() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]int, len(h.watchers))
	for docID, sockets := range h.watchers {
		out[docID] = len(sockets)
	}
	return out
}

// DocumentChanged emits "document-changed" to the document's room.
func (h *Hub) DocumentChanged(change core.Change) {
	if h.srv == nil {
		return
	}
	payload := map[string]any{
		"documentId": change.DocumentID,
		"kind":       change.Kind,
		"at":         change.At,
	}
	if change.LayerID != "" {
		payload["layerId"] = change.LayerID
	}
	if err := h.srv.To(socketio.Room(change.DocumentID)).Emit("document-changed", payload); err != nil {
		utils.Log().Printf("emit document-changed to %v failed: %v\n", change.DocumentID, err)
	}
	if change.Kind == "closed" {
		h.srv.In(socketio.Room(change.DocumentID)).SocketsLeave(socketio.Room(change.DocumentID))
		h.forget(change.DocumentID)
	}
}

func (h *Hub) onConnection(clients ...any) {
	socket, ok := clients[0].(*socketio.Socket)
	if !ok {
		return
	}
	me := socket.Id()

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-document", func(datas ...any) {
		ack, args := extractAck(datas)
		docID, err := h.documentArg(args)
		if err != nil {
			respondWithAck(socket, ack, "join-document-ack", errorPayload(err), err)
			return
		}

		socket.Join(socketio.Room(docID))
		count := h.watch(docID, me)
		utils.Log().Printf("Socket %v is watching document %v\n", me, docID)

		respondWithAck(socket, ack, "join-document-ack", map[string]any{
			"status":     "ok",
			"documentId": docID,
			"watchers":   count,
		}, nil)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("leave-document", func(datas ...any) {
		ack, args := extractAck(datas)
		docID, ok := firstString(args)
		if !ok {
			err := fmt.Errorf("document id is required")
			respondWithAck(socket, ack, "leave-document-ack", errorPayload(err), err)
			return
		}
		socket.Leave(socketio.Room(docID))
		h.unwatch(docID, me)
		respondWithAck(socket, ack, "leave-document-ack", map[string]any{"status": "ok"}, nil)
	})

	socket.On("disconnecting", func(datas ...any) {
		h.mu.Lock()
		for docID, sockets := range h.watchers {
			delete(sockets, me)
			if len(sockets) == 0 {
				delete(h.watchers, docID)
			}
		}
		h.mu.Unlock()
	})

	socket.On("disconnect", func(datas ...any) {
		socket.RemoveAllListeners("")
		socket.Disconnect(true)
	})
}

// documentArg validates the document id of a join request.
func (h *Hub) documentArg(args []any) (string, error) {
	docID, ok := firstString(args)
	if !ok {
		return "", fmt.Errorf("document id is required")
	}
	if h.docs != nil {
		if _, err := h.docs.Get(docID); err != nil {
			return "", err
		}
	}
	return docID, nil
}

func (h *Hub) watch(docID string, id socketio.SocketId) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sockets, ok := h.watchers[docID]
	if !ok {
		sockets = make(map[socketio.SocketId]struct{})
		h.watchers[docID] = sockets
	}
	sockets[id] = struct{}{}
	return len(sockets)
}

func (h *Hub) unwatch(docID string, id socketio.SocketId) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sockets, ok := h.watchers[docID]; ok {
		delete(sockets, id)
		if len(sockets) == 0 {
			delete(h.watchers, docID)
		}
	}
}

func (h *Hub) forget(docID string) {
	h.mu.Lock()
	delete(h.watchers, docID)
	h.mu.Unlock()
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok && s != ""
}

func errorPayload(err error) map[string]any {
	payload := map[string]any{
		"status": "error",
		"error":  err.Error(),
	}
	if kind := core.KindOf(err); kind != "" {
		payload["kind"] = string(kind)
	}
	return payload
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	candidate := datas[len(datas)-1]
	ack = wrapAck(candidate)
	if ack == nil {
		return nil, datas
	}

	return ack, datas[:len(datas)-1]
}

func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}

	value := reflect.ValueOf(candidate)
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		value.Call(buildAckArgs(typ, err, payload))
	}
}

// buildAckArgs adapts (err, payload) to the client's callback signature. A
// single-parameter callback receives the error, or the payload on success.
func buildAckArgs(typ reflect.Type, err error, payload map[string]any) []reflect.Value {
	numIn := typ.NumIn()
	args := make([]reflect.Value, numIn)

	for i := 0; i < numIn; i++ {
		var argValue any
		switch {
		case numIn == 1 && err != nil:
			argValue = err
		case numIn == 1:
			argValue = payload
		case i == 0:
			argValue = err
		case i == 1:
			argValue = payload
		}
		args[i] = coerceValue(argValue, typ.In(i))
	}

	return args
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(targetType) {
		return rv
	}

	if rv.Type().ConvertibleTo(targetType) {
		return rv.Convert(targetType)
	}

	if targetType.Kind() == reflect.Interface {
		if rv.Type().Implements(targetType) || targetType.NumMethod() == 0 {
			return rv
		}
	}

	if targetType.Kind() == reflect.String {
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	}

	return reflect.Zero(targetType)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}

	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
