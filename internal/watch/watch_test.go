package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherDebouncesBurstIntoOneTrigger(t *testing.T) {
	root := t.TempDir()

	var triggers int32
	w, err := New([]string{root}, Options{Debounce: 50 * time.Millisecond}, func(ctx context.Context) {
		atomic.AddInt32(&triggers, 1)
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "clip"+string(rune('a'+i))+".mp4")
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&triggers) >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	got := atomic.LoadInt32(&triggers)
	if got != 1 {
		t.Fatalf("expected exactly 1 debounced trigger for a burst of writes, got %d", got)
	}
}

func TestWatcherSkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	hidden := filepath.Join(root, ".cache")
	if err := os.Mkdir(hidden, 0755); err != nil {
		t.Fatal(err)
	}

	w, err := New([]string{root}, Options{}, func(ctx context.Context) {})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	found := false
	for _, p := range w.fsw.WatchList() {
		if p == hidden {
			found = true
		}
	}
	if found {
		t.Fatalf("expected hidden directory %s to be skipped", hidden)
	}
}
