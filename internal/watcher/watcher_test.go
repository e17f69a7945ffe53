package watcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(dir, log.New(io.Discard), Options{SettleDelay: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return Event{}
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)
	path := filepath.Join(dir, "chapter-1.json")

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte('0' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ev := nextEvent(t, w)
	if ev.ID != "chapter-1" || ev.Removed {
		t.Errorf("event = %+v", ev)
	}

	select {
	case extra := <-w.Events():
		t.Errorf("burst produced a second event %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_Remove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, dir)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ev := nextEvent(t, w)
	if ev.ID != "notes" || !ev.Removed {
		t.Errorf("event = %+v", ev)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	for _, name := range []string{".hidden.json", "audio.mp3", "cache.index"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case ev := <-w.Events():
		t.Errorf("unexpected event %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestIDFromPath(t *testing.T) {
	w := &Watcher{opts: Options{}}
	w.opts.setDefaults()

	tests := []struct {
		path string
		id   string
		ok   bool
	}{
		{"/docs/intro.json", "intro", true},
		{"/docs/Intro.MD", "Intro", true},
		{"/docs/a.b.txt", "a.b", true},
		{"/docs/.swp.json", "", false},
		{"/docs/song.mp3", "", false},
	}
	for _, tt := range tests {
		id, ok := w.IDFromPath(tt.path)
		if id != tt.id || ok != tt.ok {
			t.Errorf("IDFromPath(%q) = %q, %v", tt.path, id, ok)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel should be closed")
	}
}
