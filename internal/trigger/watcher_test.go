package trigger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherEmitsWrittenMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger")
	w := NewWatcher(path, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond) // let the watch establish

	require.NoError(t, Activate(path, "launcher"))

	select {
	case mode := <-w.Modes:
		assert.Equal(t, "launcher", mode)
	case <-time.After(2 * time.Second):
		t.Fatal("no activation emitted")
	}
}

func TestWatcherFiresRepeatedly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger")
	w := NewWatcher(path, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	for _, mode := range []string{"launcher", "windows"} {
		require.NoError(t, Activate(path, mode))
		select {
		case got := <-w.Modes:
			assert.Equal(t, mode, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("activation %q never emitted", mode)
		}
	}
}

func TestFireIgnoresEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	w := NewWatcher(path, slog.Default())
	w.fire(context.Background())

	select {
	case mode := <-w.Modes:
		t.Fatalf("unexpected activation %q", mode)
	default:
	}
}

func TestFireTruncatesAfterRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigger")
	require.NoError(t, Activate(path, "launcher"))

	w := NewWatcher(path, slog.Default())
	w.fire(context.Background())

	assert.Equal(t, "launcher", <-w.Modes)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
