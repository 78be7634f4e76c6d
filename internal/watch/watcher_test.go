package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForCallback(ch <-chan string, timeout time.Duration) (string, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		return "", false
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "engagements.json")
	require.NoError(t, os.WriteFile(file, []byte("[]"), 0o644))

	w, err := NewWatcher(nil, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan string, 10)
	require.NoError(t, w.Add(file, func(path string) { changed <- path }))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte(`[{"id":"1"}]`), 0o644))

	path, ok := waitForCallback(changed, 2*time.Second)
	require.True(t, ok, "expected callback for file change")
	assert.Equal(t, file, path)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(file, []byte("rules: []"), 0o644))

	w, err := NewWatcher(nil, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	var calls atomic.Int32
	require.NoError(t, w.Add(file, func(string) { calls.Add(1) }))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "engagements.json")
	require.NoError(t, os.WriteFile(file, []byte("[]"), 0o644))

	w, err := NewWatcher(nil, 100*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	var calls atomic.Int32
	require.NoError(t, w.Add(file, func(string) { calls.Add(1) }))

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte("[]"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(nil, 0)
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Error(t, w.Add(filepath.Join(t.TempDir(), "x"), func(string) {}))
}
