package filesystem

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a", "photo.jpg")
	dst := filepath.Join(dir, "b", "photo.jpg")
	writeFile(t, src, "pixels")

	if err := Move(src, dst, DefaultRetryConfig()); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still exists after move")
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if string(got) != "pixels" {
		t.Errorf("destination content = %q, want %q", got, "pixels")
	}
}

func TestMoveCreatesDestinationParent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "file.txt")
	dst := filepath.Join(dir, "deeply", "nested", "dir", "file.txt")
	writeFile(t, src, "x")

	if err := Move(src, dst, DefaultRetryConfig()); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("destination missing: %v", err)
	}
}

func TestMoveMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Move(filepath.Join(dir, "nope.jpg"), filepath.Join(dir, "out.jpg"), DefaultRetryConfig())
	if err == nil {
		t.Fatal("Move of missing source succeeded")
	}
}

func TestMoveByCopyDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(src, "one.txt"), "1")
	writeFile(t, filepath.Join(src, "sub", "two.txt"), "2")

	dst := filepath.Join(dir, "moved")
	if err := moveByCopy(src, dst); err != nil {
		t.Fatalf("moveByCopy failed: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source tree still exists")
	}
	for rel, want := range map[string]string{
		"one.txt":     "1",
		"sub/two.txt": "2",
	} {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(rel)))
		if err != nil {
			t.Errorf("reading %s: %v", rel, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", rel, got, want)
		}
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"stale handle", syscall.ESTALE, true},
		{"busy", syscall.EBUSY, true},
		{"not exist", syscall.ENOENT, false},
		{"wrapped stale", &os.PathError{Op: "rename", Path: "/x", Err: syscall.ESTALE}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientError(tt.err); got != tt.want {
				t.Errorf("isTransientError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsCrossDeviceError(t *testing.T) {
	if !isCrossDeviceError(&os.LinkError{Op: "rename", Old: "/a", New: "/b", Err: syscall.EXDEV}) {
		t.Error("EXDEV not detected")
	}
	if isCrossDeviceError(syscall.ENOENT) {
		t.Error("ENOENT misclassified as cross-device")
	}
}
