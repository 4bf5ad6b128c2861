package core

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string][]byte{
		"a.txt":               []byte("a"),
		"sub/b.txt":           []byte("b"),
		"sub/deeper/c.txt":    []byte("c"),
		"keepdir/archive.huf": []byte("archive"),
		"keepdir/other.txt":   []byte("other"),
	})
	keep := filepath.Join(dir, "keepdir", "archive.huf")

	if err := ClearDir(dir, []string{keep}); err != nil {
		t.Fatalf("ClearDir failed: %v", err)
	}
	assertSameTree(t, map[string][]byte{"keepdir/archive.huf": []byte("archive")}, readTree(t, dir))
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("ClearDir must keep the directory itself: %v", err)
	}
}

func TestClearDirMissing(t *testing.T) {
	err := ClearDir(filepath.Join(t.TempDir(), "missing"), nil)
	if !errors.Is(err, ErrPath) {
		t.Fatalf("Expected ErrPath, got %v", err)
	}
}

func TestClearDirReportsEachFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("Permission checks do not apply to root")
	}

	dir := t.TempDir()
	writeTree(t, dir, map[string][]byte{
		"locked1/f.txt": []byte("1"),
		"locked2/f.txt": []byte("2"),
		"free.txt":      []byte("3"),
	})
	for _, d := range []string{"locked1", "locked2"} {
		p := filepath.Join(dir, d)
		if err := os.Chmod(p, 0555); err != nil {
			t.Fatalf("Failed to chmod %s: %v", p, err)
		}
		t.Cleanup(func() { os.Chmod(p, 0755) })
	}

	var logs bytes.Buffer
	err := ClearDir(dir, nil, WithLogger(captureLogger(&logs)))
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Expected ErrIO, got %v", err)
	}
	for _, d := range []string{"locked1", "locked2"} {
		if !strings.Contains(err.Error(), d) {
			t.Errorf("Error should mention %s: %v", d, err)
		}
	}
	if strings.Count(logs.String(), "cleanup failed") != 2 {
		t.Errorf("Expected one log line per failure, got: %s", logs.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "free.txt")); !os.IsNotExist(err) {
		t.Errorf("Cleanup should continue past failures")
	}
}
