package telemetry

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newTracingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db
}

func TestRegisterDBTracing(t *testing.T) {
	t.Run("disabled registration is a no-op", func(t *testing.T) {
		db := newTracingTestDB(t)
		require.NoError(t, RegisterDBTracing(db, false, zap.NewNop()))
	})

	t.Run("enabled registration installs the plugin", func(t *testing.T) {
		db := newTracingTestDB(t)
		require.NoError(t, RegisterDBTracing(db, true, zap.NewNop()))
	})
}
