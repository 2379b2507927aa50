package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/scottdaly/drkr/core"
	"github.com/scottdaly/drkr/engine"
	"github.com/scottdaly/drkr/handlers/api/archives"
	"github.com/scottdaly/drkr/handlers/api/documents"
	"github.com/scottdaly/drkr/handlers/api/snapshots"
	"github.com/scottdaly/drkr/handlers/websocket"
	authmw "github.com/scottdaly/drkr/middleware"
	"github.com/scottdaly/drkr/persistence"
	"github.com/scottdaly/drkr/stores"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type watcherInfo struct {
	DocumentID string `json:"documentId"`
	Watchers   int    `json:"watchers"`
}

func setupRouter(svc *persistence.Service, store core.ArchiveStore, hub *websocket.Hub, jwtSecret []byte) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	corsOptions := cors.Options{
		AllowedOrigins: []string{"tauri://localhost"},
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "" {
				return false
			}

			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}

			switch parsed.Scheme {
			case "http", "https":
				switch parsed.Hostname() {
				case "localhost", "127.0.0.1", "[::1]":
					return true
				}
			case "tauri":
				return parsed.Hostname() == "localhost"
			}

			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	r.Use(cors.Handler(corsOptions))

	m := svc.Manager()
	snapshotStore, hasSnapshots := store.(core.SnapshotStore)

	r.Route("/api/v1", func(r chi.Router) {
		if len(jwtSecret) > 0 {
			r.Use(authmw.AuthJWT(jwtSecret))
		}

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", documents.HandleCreate(m))
			r.Get("/", documents.HandleList(m))
			r.Post("/open", documents.HandleOpen(svc))
			r.Post("/import", documents.HandleImport(svc))

			r.Route("/{docID}", func(r chi.Router) {
				r.Get("/", documents.HandleGet(m))
				r.Delete("/", documents.HandleClose(m))
				r.Put("/name", documents.HandleRename(m))
				r.Put("/path", documents.HandleSetPath(m))
				r.Post("/save", documents.HandleSave(svc))
				r.Post("/export", documents.HandleExport(svc))
				r.Get("/preview", documents.HandlePreview(svc))
				r.Post("/crop", documents.HandleCrop(m))
				r.Post("/undo", documents.HandleUndo(m))
				r.Post("/redo", documents.HandleRedo(m))
				r.Get("/history", documents.HandleHistory(m))

				r.Route("/layers", func(r chi.Router) {
					r.Post("/", documents.HandleAddLayer(m))
					r.Put("/order", documents.HandleReorderLayers(m))
					r.Route("/{layerID}", func(r chi.Router) {
						r.Patch("/", documents.HandleUpdateLayer(m))
						r.Delete("/", documents.HandleRemoveLayer(m))
						r.Get("/pixels", documents.HandleGetDocumentLayerPixels(m))
						r.Put("/pixels", documents.HandleSetDocumentLayerPixels(m))
						r.Post("/stroke", documents.HandleStroke(m))
						r.Post("/filter", documents.HandleFilter(m))
					})
				})

				if hasSnapshots {
					r.Route("/snapshots", func(r chi.Router) {
						r.Post("/", snapshots.HandleCreateSnapshot(snapshotStore, svc))
						r.Get("/", snapshots.HandleListSnapshots(snapshotStore))
						r.Get("/settings", snapshots.HandleGetSettings(snapshotStore))
						r.Put("/settings", snapshots.HandleUpdateSettings(snapshotStore))
					})
				}
			})
		})

		r.Get("/layers/{layerID}/pixels", documents.HandleGetLayerPixels(m))
		r.Put("/layers/{layerID}/pixels", documents.HandleSetLayerPixels(m))

		r.Route("/archives", func(r chi.Router) {
			r.Get("/", archives.HandleList(svc))
			r.Get("/{key}", archives.HandleDownload(svc))
			r.Put("/{key}", archives.HandleUpload(svc))
			r.Delete("/{key}", archives.HandleDelete(svc))
		})

		if hasSnapshots {
			r.Route("/snapshots/{snapshotID}", func(r chi.Router) {
				r.Get("/", snapshots.HandleGetSnapshot(snapshotStore))
				r.Delete("/", snapshots.HandleDeleteSnapshot(snapshotStore))
				r.Post("/restore", snapshots.HandleRestoreSnapshot(snapshotStore, svc))
			})
		}

		r.Get("/watchers", func(w http.ResponseWriter, r *http.Request) {
			counts := hub.Watchers()
			list := make([]watcherInfo, 0, len(counts))
			for id, n := range counts {
				list = append(list, watcherInfo{DocumentID: id, Watchers: n})
			}
			sort.Slice(list, func(i, j int) bool {
				if list[i].Watchers == list[j].Watchers {
					return list[i].DocumentID < list[j].DocumentID
				}
				return list[i].Watchers > list[j].Watchers
			})
			render.JSON(w, r, list)
		})
	})

	if hasSnapshots {
		logrus.Info("Snapshot API routes registered")
	} else {
		logrus.Warn("Snapshot API not available - requires SQLite storage")
	}

	return r
}

// historyLimit reads DRKR_HISTORY_LIMIT, falling back to the engine default.
func historyLimit() int {
	v := os.Getenv("DRKR_HISTORY_LIMIT")
	if v == "" {
		return engine.DefaultHistoryLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logrus.WithField("value", v).Warn("Ignoring invalid DRKR_HISTORY_LIMIT")
		return engine.DefaultHistoryLimit
	}
	return n
}

func waitForShutdown(ioo *socketio.Server) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	ioo.Close(nil)
	os.Exit(0)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", ":3002", "Set the server listen address")
	issueToken := flag.String("issue-token", "", "Print a bearer token for this subject and exit (requires JWT_SECRET)")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if *issueToken != "" {
		if len(jwtSecret) == 0 {
			logrus.Fatal("JWT_SECRET must be set to issue tokens")
		}
		token, err := authmw.SignJWT(jwtSecret, *issueToken, 7*24*time.Hour)
		if err != nil {
			logrus.Fatalf("Failed to sign token: %v", err)
		}
		fmt.Println(token)
		return
	}
	if len(jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET not set - API is unauthenticated")
	}

	store := stores.GetStore()
	manager := engine.NewManager(engine.WithHistoryLimit(historyLimit()))
	hub := websocket.NewHub(manager)
	manager.SetNotifier(hub)
	svc := persistence.NewService(manager, store)

	r := setupRouter(svc, store, hub, jwtSecret)
	ioo := hub.Server()
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddr, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo)
}
