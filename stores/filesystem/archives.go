package filesystem

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scottdaly/drkr/core"
	"github.com/sirupsen/logrus"
)

const tempSuffix = ".tmp"

type archiveStore struct {
	basePath string
}

func NewArchiveStore(basePath string) core.ArchiveStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &archiveStore{basePath: basePath}
}

func (s *archiveStore) path(key string) (string, error) {
	if err := core.ValidateArchiveKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, key), nil
}

// Put writes through a temporary file and renames it into place, so readers
// never see a partial archive.
func (s *archiveStore) Put(ctx context.Context, key string, data []byte) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{
		"key":       key,
		"file_path": filePath,
	})

	tmp, err := os.CreateTemp(s.basePath, "."+key+"-*"+tempSuffix)
	if err != nil {
		log.WithError(err).Error("Failed to create temporary archive")
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		log.WithError(err).Error("Failed to write archive")
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		log.WithError(err).Error("Failed to move archive into place")
		return err
	}

	log.WithField("data_length", len(data)).Info("Archive stored")
	return nil
}

func (s *archiveStore) Get(ctx context.Context, key string) ([]byte, error) {
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("key", key)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("error", "archive not found").Warn("Archive with specified key not found")
			return nil, fmt.Errorf("%w: %s", core.ErrArchiveNotFound, key)
		}
		log.WithError(err).Error("Failed to read archive")
		return nil, err
	}
	return data, nil
}

func (s *archiveStore) List(ctx context.Context) ([]core.ArchiveInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}

	infos := make([]core.ArchiveInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			logrus.WithError(err).Warnf("Failed to get file info for %s, skipping", name)
			continue
		}
		infos = append(infos, core.ArchiveInfo{Key: name, Size: fi.Size(), UpdatedAt: fi.ModTime()})
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
	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", core.ErrArchiveNotFound, key)
		}
		return err
	}
	logrus.WithField("key", key).Info("Archive deleted")
	return nil
}
