package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	stdlog "log"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/scottdaly/drkr/core"
	"github.com/sirupsen/logrus"
)

// DefaultMaxSnapshots applies to documents without stored settings.
const DefaultMaxSnapshots = 10

type store struct {
	db *sql.DB
}

// NewStore opens the database and creates the archive, snapshot and settings
// tables. The result implements both core.ArchiveStore and core.SnapshotStore.
func NewStore(dataSourceName string) core.ArchiveStore {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		stdlog.Fatal(err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS archives (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			name TEXT,
			description TEXT,
			thumbnail TEXT,
			created_at INTEGER NOT NULL,
			data BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS snapshots_document ON snapshots (document_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS document_settings (
			document_id TEXT PRIMARY KEY,
			max_snapshots INTEGER DEFAULT 10
		);`,
	}
	for _, sts := range tables {
		if _, err := db.Exec(sts); err != nil {
			stdlog.Fatal(err)
		}
	}

	return &store{db}
}

func (s *store) Put(ctx context.Context, key string, data []byte) error {
	if err := core.ValidateArchiveKey(key); err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(data),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO archives (key, data, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at",
		key, data, time.Now().UnixMilli())
	if err != nil {
		log.WithField("error", err).Error("Failed to store archive")
		return err
	}
	log.Info("Archive stored")
	return nil
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	log := logrus.WithField("key", key)
	log.Debug("Retrieving archive by key")

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM archives WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.WithField("error", "archive not found").Warn("Archive with specified key not found")
			return nil, fmt.Errorf("%w: %s", core.ErrArchiveNotFound, key)
		}
		log.WithField("error", err).Error("Failed to retrieve archive")
		return nil, err
	}
	return data, nil
}

func (s *store) List(ctx context.Context) ([]core.ArchiveInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, length(data), updated_at FROM archives ORDER BY updated_at DESC, key ASC")
	if err != nil {
		logrus.WithField("error", err).Error("Failed to list archives")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close archive rows")
		}
	}()

	infos := []core.ArchiveInfo{}
	for rows.Next() {
		var (
			info      core.ArchiveInfo
			updatedAt int64
		)
		if err := rows.Scan(&info.Key, &info.Size, &updatedAt); err != nil {
			logrus.WithField("error", err).Error("Failed to scan archive")
			continue
		}
		info.UpdatedAt = time.UnixMilli(updatedAt)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *store) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM archives WHERE key = ?", key)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err}).Error("Failed to delete archive")
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", core.ErrArchiveNotFound, key)
	}
	return nil
}

// CreateSnapshot stores a DRKR snapshot of a document, evicting the oldest
// snapshots once the document's limit is reached.
func (s *store) CreateSnapshot(ctx context.Context, documentID, name, description, thumbnail string, data []byte) (string, error) {
	id := ulid.Make().String()
	createdAt := ulid.Now()

	log := logrus.WithFields(logrus.Fields{
		"snapshot_id": id,
		"document_id": documentID,
		"data_length": len(data),
	})

	settings, err := s.GetSnapshotSettings(ctx, documentID)
	if err != nil {
		return "", err
	}

	var count int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots WHERE document_id = ?", documentID).Scan(&count)
	if err != nil {
		log.WithField("error", err).Error("Failed to count snapshots")
		return "", err
	}

	if excess := count - settings.MaxSnapshots + 1; excess > 0 {
		_, err = s.db.ExecContext(ctx,
			"DELETE FROM snapshots WHERE id IN (SELECT id FROM snapshots WHERE document_id = ? ORDER BY created_at ASC, id ASC LIMIT ?)",
			documentID, excess)
		if err != nil {
			log.WithField("error", err).Error("Failed to delete oldest snapshots")
		}
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (id, document_id, name, description, thumbnail, created_at, data) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, documentID, name, description, thumbnail, createdAt, data)
	if err != nil {
		log.WithField("error", err).Error("Failed to create snapshot")
		return "", err
	}

	log.Info("Snapshot created successfully")
	return id, nil
}

// ListSnapshots returns the snapshots of a document, newest first, without
// their data.
func (s *store) ListSnapshots(ctx context.Context, documentID string) ([]core.Snapshot, error) {
	log := logrus.WithField("document_id", documentID)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_id, name, description, thumbnail, created_at FROM snapshots WHERE document_id = ? ORDER BY created_at DESC, id DESC",
		documentID)
	if err != nil {
		log.WithField("error", err).Error("Failed to list snapshots")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close snapshot rows")
		}
	}()

	snapshots := []core.Snapshot{}
	for rows.Next() {
		var snapshot core.Snapshot
		var name, description, thumbnail sql.NullString
		err = rows.Scan(&snapshot.ID, &snapshot.DocumentID, &name, &description, &thumbnail, &snapshot.CreatedAt)
		if err != nil {
			log.WithField("error", err).Error("Failed to scan snapshot")
			continue
		}
		snapshot.Name = name.String
		snapshot.Description = description.String
		snapshot.Thumbnail = thumbnail.String
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

func (s *store) GetSnapshot(ctx context.Context, id string) (*core.Snapshot, error) {
	log := logrus.WithField("snapshot_id", id)

	var snapshot core.Snapshot
	var name, description, thumbnail sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, document_id, name, description, thumbnail, created_at, data FROM snapshots WHERE id = ?",
		id).Scan(&snapshot.ID, &snapshot.DocumentID, &name, &description, &thumbnail, &snapshot.CreatedAt, &snapshot.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.WithField("error", "snapshot not found").Warn("Snapshot with specified ID not found")
			return nil, fmt.Errorf("%w: snapshot %s", core.ErrArchiveNotFound, id)
		}
		log.WithField("error", err).Error("Failed to retrieve snapshot")
		return nil, err
	}

	snapshot.Name = name.String
	snapshot.Description = description.String
	snapshot.Thumbnail = thumbnail.String
	return &snapshot, nil
}

func (s *store) DeleteSnapshot(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		logrus.WithFields(logrus.Fields{"snapshot_id": id, "error": err}).Error("Failed to delete snapshot")
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: snapshot %s", core.ErrArchiveNotFound, id)
	}
	logrus.WithField("snapshot_id", id).Info("Snapshot deleted successfully")
	return nil
}

func (s *store) GetSnapshotSettings(ctx context.Context, documentID string) (*core.SnapshotSettings, error) {
	settings := core.SnapshotSettings{DocumentID: documentID}
	err := s.db.QueryRowContext(ctx,
		"SELECT max_snapshots FROM document_settings WHERE document_id = ?",
		documentID).Scan(&settings.MaxSnapshots)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			settings.MaxSnapshots = DefaultMaxSnapshots
			return &settings, nil
		}
		logrus.WithFields(logrus.Fields{"document_id": documentID, "error": err}).Error("Failed to retrieve snapshot settings")
		return nil, err
	}
	return &settings, nil
}

func (s *store) UpdateSnapshotSettings(ctx context.Context, documentID string, maxSnapshots int) error {
	if maxSnapshots < 1 {
		return core.InvalidOperation("max_snapshots must be at least 1, got %d", maxSnapshots)
	}
	log := logrus.WithFields(logrus.Fields{
		"document_id":   documentID,
		"max_snapshots": maxSnapshots,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO document_settings (document_id, max_snapshots) VALUES (?, ?) ON CONFLICT(document_id) DO UPDATE SET max_snapshots = excluded.max_snapshots",
		documentID, maxSnapshots)
	if err != nil {
		log.WithField("error", err).Error("Failed to update snapshot settings")
		return err
	}
	log.Info("Snapshot settings updated successfully")
	return nil
}
