package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type mockProcessor struct {
	failOn string
}

func (m *mockProcessor) Process(ctx context.Context, target string) (int, error) {
	time.Sleep(time.Millisecond)
	if m.failOn != "" && strings.Contains(target, m.failOn) {
		return 0, errors.New("ingest error")
	}
	return len(target), nil
}

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessTargets(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{failOn: "bad"}, 2)

	targets := []string{"a.html", "bad.html", "http://example.com/c", "d.html", "e.html", "f.html", "g.html"}
	results := processor.ProcessTargets(context.Background(), targets)

	if len(results) != len(targets) {
		t.Fatalf("expected %d results, got %d", len(targets), len(results))
	}
	for i, res := range results {
		if res.Target != targets[i] {
			t.Errorf("result %d out of order: %s", i, res.Target)
		}
		if res.Target == "bad.html" {
			if res.Err() == nil {
				t.Error("expected error for bad.html")
			}
			continue
		}
		if res.Err() != nil {
			t.Errorf("unexpected error for %s: %v", res.Target, res.Err())
		}
		if res.Segments != len(res.Target) {
			t.Errorf("expected %d segments, got %d", len(res.Target), res.Segments)
		}
	}
}

func TestBatchProcessor_ProcessTargets_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2)
	if results := processor.ProcessTargets(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadTargetsFromFile(t *testing.T) {
	path := writeList(t, "docs/a.html\n# comment\nhttps://example.com/b\n   \ndocs/a.html\n  docs/c.html   ")

	targets, err := ReadTargetsFromFile(path)
	if err != nil {
		t.Fatalf("ReadTargetsFromFile failed: %v", err)
	}

	expected := []string{"docs/a.html", "https://example.com/b", "docs/c.html"}
	if len(targets) != len(expected) {
		t.Fatalf("expected %d targets, got %d", len(expected), len(targets))
	}
	for i, target := range targets {
		if target != expected[i] {
			t.Errorf("expected %s at index %d, got %s", expected[i], i, target)
		}
	}
}

func TestReadTargetsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadTargetsFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2)

	results, err := processor.ProcessFile(context.Background(), writeList(t, "a.html\nb.html\n# skip\n\nc.html\n"))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}

	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
