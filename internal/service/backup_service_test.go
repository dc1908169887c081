package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fee-ledger-api/pkg/config"
	"github.com/noah-isme/fee-ledger-api/pkg/database"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
	"github.com/noah-isme/fee-ledger-api/pkg/storage"
)

func TestBackupServiceWritesSnapshot(t *testing.T) {
	f := newLedgerFixture(t)
	f.addStudent(t, "Asha", "JR KG")

	backups, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewBackupService(f.db, backups, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	first, err := svc.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "students_20240506_070809.db", first.FileName)
	assert.Greater(t, first.SizeBytes, int64(0))

	second, err := svc.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "students_20240506_070809_1.db", second.FileName)

	snapshot, err := database.Open(config.DatabaseConfig{Driver: config.DriverSQLite, Path: backups.Path(first.FileName)})
	require.NoError(t, err)
	defer snapshot.Close()
	var count int
	require.NoError(t, snapshot.Get(&count, "SELECT COUNT(*) FROM students"))
	assert.Equal(t, 1, count)

	_, err = os.Stat(backups.Path(second.FileName))
	require.NoError(t, err)
}

func TestBackupServiceRequiresSQLite(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	backups, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewBackupService(sqlx.NewDb(db, "postgres"), backups, nil)

	_, err = svc.Create(context.Background())
	requireCode(t, err, appErrors.ErrPreconditionFailed.Code)
}
