package engine

// PixelStore owns every layer's RGBA buffer, keyed by layer id. Geometry lives
// on core.Layer; the store never looks at it.
type PixelStore struct {
	buffers map[string][]byte
}

func NewPixelStore() *PixelStore {
	return &PixelStore{buffers: make(map[string][]byte)}
}

func (s *PixelStore) Get(layerID string) ([]byte, bool) {
	px, ok := s.buffers[layerID]
	return px, ok
}

// Set replaces the buffer for layerID. The store takes ownership of px.
func (s *PixelStore) Set(layerID string, px []byte) {
	s.buffers[layerID] = px
}

func (s *PixelStore) Delete(layerID string) {
	delete(s.buffers, layerID)
}

func (s *PixelStore) Len() int {
	return len(s.buffers)
}

// Copy returns a private copy of the buffer, or nil if none is stored.
func (s *PixelStore) Copy(layerID string) []byte {
	px, ok := s.buffers[layerID]
	if !ok {
		return nil
	}
	out := make([]byte, len(px))
	copy(out, px)
	return out
}

func filled(n int, v byte) []byte {
	px := make([]byte, n)
	if v != 0 {
		for i := range px {
			px[i] = v
		}
	}
	return px
}
