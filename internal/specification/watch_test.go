package specification

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchSource_Next_WorksWithoutStart(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "// TODO: initial marker\n")

	ws, err := NewWatchSource(dir, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Stop()

	spec, err := ws.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if spec == nil {
		t.Fatal("expected to find the initial marker without ever calling Start")
	}
}

func TestWatchSource_Next_PicksUpNewMarkerAfterFileChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.go", "// TODO: first marker\n")

	ws, err := NewWatchSource(dir, nil, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ws.Start(ctx)

	// drain the initial marker
	first, err := ws.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first == nil {
		t.Fatal("expected the initial marker")
	}
	if next, _ := ws.Next(context.Background()); next != nil {
		t.Fatal("expected scan to be exhausted before the file changes")
	}

	if err := os.WriteFile(path, []byte("// TODO: first marker\n// TODO: second marker\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		spec, err := ws.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if spec != nil {
			return // rescanned and found a marker again: the watcher noticed the write
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for WatchSource to notice the file change")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatchSource_Stop_WithoutStartDoesNotBlock(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWatchSource(dir, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		ws.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked when Start() was never called")
	}
}

func TestNewWatchSource_WatchesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	ws, err := NewWatchSource(dir, nil, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ws.Start(ctx)

	writeFile(t, dir, "sub/b.go", "// TODO: nested marker\n")

	deadline := time.Now().Add(2 * time.Second)
	for {
		spec, err := ws.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if spec != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for WatchSource to notice the nested directory")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
