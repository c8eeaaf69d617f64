package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempDir(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempDir(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	fi, err := s.Stat("note.md")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if fi.Size != int64(len(content)) {
		t.Errorf("size = %d", fi.Size)
	}
}

func TestDelete(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
	if err := s.Delete("del.md"); err == nil {
		t.Error("expected error deleting missing file")
	}
}

func TestList(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("b.md", []byte("b"))
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("readme.txt", []byte("not md"))
	if err := os.Mkdir(filepath.Join(s.root, "sub.md"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.root, TempPrefix+"x.md"), []byte("tmp"), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Name != "a.md" || items[1].Name != "b.md" {
		t.Errorf("order = %s, %s", items[0].Name, items[1].Name)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempDir(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
		"sub/note.md",
		"..",
		"",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("atomic.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, TempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "quill-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestIsNoteFile(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"note.md", true},
		{"note.txt", false},
		{TempPrefix + "1.md", false},
		{"md", false},
	}
	for _, tc := range cases {
		if got := IsNoteFile(tc.name); got != tc.want {
			t.Errorf("IsNoteFile(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
