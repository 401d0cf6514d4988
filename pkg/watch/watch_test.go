package watch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{})
}

// TestNewValidates verifies argument checks and defaults of New
func TestNewValidates(t *testing.T) {
	_, err := New(nil, 0, nil, func(context.Context) error { return nil })
	assert.Error(t, err)

	_, err = New([]string{"a.mrk.json"}, 0, nil, nil)
	assert.Error(t, err)

	w, err := New([]string{"a.mrk.json", "b.mrk.json"}, 0, nil, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.Len(t, w.dirs, 1)
	assert.Len(t, w.files, 2)
}

// TestRunRecomputesOnWrite verifies that writing a watched file triggers an update and other files do not
func TestRunRecomputesOnWrite(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "line.mrk.json")
	other := filepath.Join(dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(watched, []byte("{}"), 0644))

	var calls atomic.Int32
	w, err := New([]string{watched}, 20*time.Millisecond, quietLogger(), func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(watched, []byte(`{"markups":[]}`), 0644))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

// TestRunKeepsGoingAfterFailure verifies that a failed update does not stop the watcher
func TestRunKeepsGoingAfterFailure(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "midline.mrk.json")
	require.NoError(t, os.WriteFile(watched, []byte("{}"), 0644))

	var calls atomic.Int32
	w, err := New([]string{watched}, 10*time.Millisecond, quietLogger(), func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("degenerate landmarks")
		}
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(watched, []byte(`{"markups":[]}`), 0644))
	require.Eventually(t, func() bool {
		runs, failures := w.Stats()
		return runs >= 2 && failures == 1
	}, 2*time.Second, 5*time.Millisecond)
}

// TestRunDebouncesBurst verifies that a burst of writes inside the debounce
// window produces a single update after the initial one.
func TestRunDebouncesBurst(t *testing.T) {
	const debounce = 300 * time.Millisecond
	dir := t.TempDir()
	watched := filepath.Join(dir, "line.mrk.json")
	require.NoError(t, os.WriteFile(watched, []byte("{}"), 0644))

	var calls atomic.Int32
	w, err := New([]string{watched}, debounce, quietLogger(), func(context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(watched, []byte(`{"markups":[]}`), 0644))
		time.Sleep(20 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 3*time.Second, 5*time.Millisecond)

	time.Sleep(2 * debounce)
	assert.Equal(t, int32(2), calls.Load())
	runs, failures := w.Stats()
	assert.Equal(t, 2, runs)
	assert.Zero(t, failures)
}

// TestRunMissingDirectory verifies that Run fails when a watched directory does not exist
func TestRunMissingDirectory(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "gone", "line.mrk.json")}, 0, quietLogger(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}
