package scheduler

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyiy/zimage/internal/history"
	"github.com/pyiy/zimage/internal/model"
	"github.com/pyiy/zimage/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestRunMaintenance(t *testing.T) {
	s := store.NewMemoryStore()
	h := history.NewManager(s, testLogger())
	sched := New(s, h, testLogger())

	// A stale entry plus a fresh one.
	require.NoError(t, h.Add(model.GeneratedImage{ID: "stale", Timestamp: time.Now().Add(-30 * time.Hour)}))
	require.NoError(t, h.Add(model.GeneratedImage{ID: "fresh", Timestamp: time.Now()}))

	// A snapshot from a previous day.
	require.NoError(t, s.Set(store.KeyTokenLedger, `{"date":"2020-01-01","exhausted":{"tok":true}}`))

	sched.RunMaintenance()

	items, err := h.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fresh", items[0].ID)

	_, ok, err := s.Get(store.KeyTokenLedger)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMaintenanceKeepsTodaySnapshot(t *testing.T) {
	s := store.NewMemoryStore()
	h := history.NewManager(s, testLogger())
	sched := New(s, h, testLogger())

	today := time.Now().UTC().Format("2006-01-02")
	require.NoError(t, s.Set(store.KeyTokenLedger, `{"date":"`+today+`","exhausted":{"tok":true}}`))

	sched.RunMaintenance()

	_, ok, err := s.Get(store.KeyTokenLedger)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStartStop(t *testing.T) {
	s := store.NewMemoryStore()
	sched := New(s, history.NewManager(s, testLogger()), testLogger())
	require.NoError(t, sched.Start())
	sched.Stop()
}
