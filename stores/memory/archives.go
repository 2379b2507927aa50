package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scottdaly/drkr/core"
	"github.com/sirupsen/logrus"
)

type archive struct {
	data      []byte
	updatedAt time.Time
}

type archiveStore struct {
	mu       sync.RWMutex
	archives map[string]archive
}

func NewArchiveStore() core.ArchiveStore {
	return &archiveStore{
		archives: make(map[string]archive),
	}
}

func (s *archiveStore) Put(ctx context.Context, key string, data []byte) error {
	if err := core.ValidateArchiveKey(key); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.archives[key] = archive{data: buf, updatedAt: time.Now()}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(data),
	}).Info("Archive stored")
	return nil
}

func (s *archiveStore) Get(ctx context.Context, key string) ([]byte, error) {
	log := logrus.WithField("key", key)

	s.mu.RLock()
	a, ok := s.archives[key]
	s.mu.RUnlock()

	if !ok {
		log.WithField("error", "archive not found").Warn("Archive with specified key not found")
		return nil, fmt.Errorf("%w: %s", core.ErrArchiveNotFound, key)
	}
	out := make([]byte, len(a.data))
	copy(out, a.data)
	log.Debug("Archive retrieved successfully")
	return out, nil
}

func (s *archiveStore) List(ctx context.Context) ([]core.ArchiveInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]core.ArchiveInfo, 0, len(s.archives))
	for key, a := range s.archives {
		infos = append(infos, core.ArchiveInfo{Key: key, Size: int64(len(a.data)), UpdatedAt: a.updatedAt})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].Key < infos[j].Key
		}
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

func (s *archiveStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.archives[key]; !ok {
		return fmt.Errorf("%w: %s", core.ErrArchiveNotFound, key)
	}
	delete(s.archives, key)
	return nil
}
