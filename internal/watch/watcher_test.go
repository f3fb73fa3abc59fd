package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSkipsRemoteAndEmpty(t *testing.T) {
	w := New(10*time.Millisecond, nil)
	assert.False(t, w.Watch("", func() {}))
	assert.False(t, w.Watch("https://example.com/data.json", func() {}))
	assert.True(t, w.Watch(filepath.Join(t.TempDir(), "data.json"), func() {}))
}

func TestStartWithoutTargetsIsNoop(t *testing.T) {
	w := New(10*time.Millisecond, nil)
	assert.NoError(t, w.Start(context.Background()))
}

func TestBurstOfWritesIsDebounced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	var calls int32
	fired := make(chan struct{}, 4)
	w := New(150*time.Millisecond, nil)
	require.True(t, w.Watch(path, func() {
		atomic.AddInt32(&calls, 1)
		fired <- struct{}{}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"buildings":[]}`), 0o644))
		time.Sleep(10 * time.Millisecond)
	}
	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("change handler never fired")
	}
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFileURLIsWatched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.csv")
	require.NoError(t, os.WriteFile(path, []byte("id\n"), 0o644))

	fired := make(chan struct{}, 1)
	w := New(20*time.Millisecond, nil)
	require.True(t, w.Watch("file://"+path, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("id,building\n"), 0o644))
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("change handler never fired")
	}
}

func TestMissingDirectoryIsSkipped(t *testing.T) {
	existing := t.TempDir()
	missing := filepath.Join(t.TempDir(), "data")

	w := New(10*time.Millisecond, nil)
	require.True(t, w.Watch(filepath.Join(missing, "data.json"), func() {}))
	require.True(t, w.Watch(filepath.Join(existing, "backup.csv"), func() {}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	assert.Equal(t, []string{existing}, w.Watching())
}

func TestAllDirectoriesMissingIsNotAnError(t *testing.T) {
	w := New(10*time.Millisecond, nil)
	require.True(t, w.Watch(filepath.Join(t.TempDir(), "gone", "data.json"), func() {}))
	assert.NoError(t, w.Start(context.Background()))
	assert.Empty(t, w.Watching())
}
