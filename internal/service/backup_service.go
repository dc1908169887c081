package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fee-ledger-api/internal/models"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
)

type snapshotDB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	DriverName() string
}

type backupStorage interface {
	UniqueName(base, ext string) (string, error)
	Path(name string) string
}

// BackupService snapshots the embedded database into the backups directory.
type BackupService struct {
	mu      sync.Mutex
	db      snapshotDB
	storage backupStorage
	logger  *zap.Logger
	now     func() time.Time
}

// NewBackupService constructs a backup service.
func NewBackupService(db snapshotDB, store backupStorage, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{db: db, storage: store, logger: logger, now: time.Now}
}

// Create writes a consistent copy of the SQLite database with VACUUM INTO.
// Server databases are backed up by their own tooling.
func (s *BackupService) Create(ctx context.Context) (*models.Backup, error) {
	if s.db.DriverName() != "sqlite" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "backups are only supported for the sqlite driver")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now().UTC()
	name, err := s.storage.UniqueName("students_"+createdAt.Format("20060102_150405"), ".db")
	if err != nil {
		return nil, appErrors.Storage(err, "failed to choose backup name")
	}
	path := s.storage.Path(name)
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, appErrors.Storage(err, "failed to write backup")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, appErrors.Storage(fmt.Errorf("stat backup: %w", err), "failed to write backup")
	}

	s.logger.Info("database backup written", zap.String("file", name), zap.Int64("bytes", info.Size()))
	return &models.Backup{FileName: name, SizeBytes: info.Size(), CreatedAt: createdAt}, nil
}
