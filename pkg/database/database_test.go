package database

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type counter struct {
	Name  string `gorm:"primaryKey"`
	Value int
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("chat.db")
	require.Contains(t, dsn, "_txlock=immediate")
	require.Contains(t, dsn, "_journal_mode=WAL")
	require.Contains(t, dsn, "_busy_timeout=5000")

	// An explicit query string is left alone.
	require.Equal(t, "file:chat.db?mode=memory", sqliteDSN("file:chat.db?mode=memory"))
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, logger.Silent, parseLogLevel("silent"))
	require.Equal(t, logger.Info, parseLogLevel("INFO"))
	require.Equal(t, logger.Warn, parseLogLevel(""))
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(&Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestSQLiteReadThenWriteTransactionsDoNotFailBusy(t *testing.T) {
	db, err := New(&Config{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "busy.db"),
		MaxOpenConns: 100,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })
	require.NoError(t, AutoMigrate(db, &counter{}))

	const keys, rounds = 10, 10
	for i := 0; i < keys; i++ {
		require.NoError(t, db.Create(&counter{Name: fmt.Sprintf("k%d", i)}).Error)
	}

	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				err := db.Transaction(func(tx *gorm.DB) error {
					var c counter
					if err := tx.First(&c, "name = ?", name).Error; err != nil {
						return err
					}
					return tx.Model(&counter{}).Where("name = ?", name).Update("value", c.Value+1).Error
				})
				if err != nil {
					t.Errorf("%s: %v", name, err)
					return
				}
			}
		}(fmt.Sprintf("k%d", i))
	}
	wg.Wait()

	var rows []counter
	require.NoError(t, db.Find(&rows).Error)
	for _, c := range rows {
		require.Equal(t, rounds, c.Value, c.Name)
	}
}
