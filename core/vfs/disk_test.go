package vfs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	dberrors "github.com/FocuswithJustin/minilite/core/errors"
)

func openDisk(t *testing.T, flags OpenFlags) (File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	io := NewDiskIO()
	f, err := io.OpenFile(path, flags)
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	t.Cleanup(func() {
		if df, ok := f.(*DiskFile); ok {
			df.Close()
		}
	})
	return f, path
}

func TestDiskFileWriteReadRoundTrip(t *testing.T) {
	f, _ := openDisk(t, DefaultFlags())

	data := bytes.Repeat([]byte{0xDE, 0xAD}, 2048)
	if n := write(t, f, 0, data); n != int32(len(data)) {
		t.Errorf("Pwrite n = %d, want %d", n, len(data))
	}

	got, n := read(t, f, 0, len(data))
	if n != int32(len(data)) {
		t.Fatalf("Pread n = %d, want %d", n, len(data))
	}
	if !bytes.Equal(got, data) {
		t.Error("read bytes differ from written bytes")
	}
}

func TestDiskFileGrowRemap(t *testing.T) {
	f, _ := openDisk(t, DefaultFlags())

	write(t, f, 0, []byte("first"))
	// Extending write forces a remap
	write(t, f, 8192, []byte("second"))

	size, err := f.Size()
	if err != nil {
		t.Fatalf("Size() error: %v", err)
	}
	if want := int64(8192 + 6); size != want {
		t.Errorf("Size() = %d, want %d", size, want)
	}

	got, n := read(t, f, 8192, 6)
	if n != 6 || string(got) != "second" {
		t.Errorf("read %q (n=%d), want %q", got, n, "second")
	}

	// The gap was never written: the filesystem supplies zeros
	gap, _ := read(t, f, 5, 100)
	for i, b := range gap {
		if b != 0 {
			t.Fatalf("gap byte %d = %#x, want 0", i, b)
		}
	}
}

func TestDiskFileReadPastEOF(t *testing.T) {
	f, _ := openDisk(t, DefaultFlags())
	write(t, f, 0, []byte("hello"))

	if _, n := read(t, f, 5, 16); n != 0 {
		t.Errorf("Pread at size n = %d, want 0", n)
	}
	if _, n := read(t, f, 100, 16); n != 0 {
		t.Errorf("Pread past size n = %d, want 0", n)
	}
}

func TestDiskFilePwritev(t *testing.T) {
	f, _ := openDisk(t, DefaultFlags())

	bufs := []*Buffer{
		NewBuffer([]byte("abc")),
		NewBuffer([]byte("defg")),
	}
	c, err := f.Pwritev(2, bufs, NewWriteCompletion(nil))
	if err != nil {
		t.Fatalf("Pwritev submit error: %v", err)
	}
	n, err := c.Result()
	if err != nil {
		t.Fatalf("Pwritev completion error: %v", err)
	}
	if n != 7 {
		t.Errorf("Pwritev n = %d, want 7", n)
	}

	got, _ := read(t, f, 2, 7)
	if string(got) != "abcdefg" {
		t.Errorf("read %q, want %q", got, "abcdefg")
	}
}

func TestDiskFileTruncate(t *testing.T) {
	f, path := openDisk(t, DefaultFlags())
	write(t, f, 0, make([]byte, 8192))

	c, err := f.Truncate(100, NewTruncateCompletion(nil))
	if err != nil {
		t.Fatalf("Truncate submit error: %v", err)
	}
	if _, err := c.Result(); err != nil {
		t.Fatalf("Truncate completion error: %v", err)
	}

	size, _ := f.Size()
	if size != 100 {
		t.Errorf("Size() = %d, want 100", size)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if fi.Size() != 100 {
		t.Errorf("on-disk size = %d, want 100", fi.Size())
	}
}

func TestDiskFileSync(t *testing.T) {
	f, _ := openDisk(t, DefaultFlags())
	write(t, f, 0, []byte("durable"))

	c, err := f.Sync(NewSyncCompletion(nil))
	if err != nil {
		t.Fatalf("Sync submit error: %v", err)
	}
	if _, err := c.Result(); err != nil {
		t.Errorf("Sync completion error: %v", err)
	}
}

func TestDiskFileReadOnlyRejectsWrites(t *testing.T) {
	// Create the file first, then reopen read-only
	path := filepath.Join(t.TempDir(), "ro.db")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	io := NewDiskIO()
	f, err := io.OpenFile(path, OpenReadOnly)
	if err != nil {
		t.Fatalf("OpenFile error: %v", err)
	}
	defer f.(*DiskFile).Close()

	c, err := f.Pwrite(0, NewBuffer([]byte("x")), NewWriteCompletion(nil))
	if err != nil {
		t.Fatalf("Pwrite submit error: %v", err)
	}
	_, cerr := c.Result()
	var ce dberrors.CompletionError
	if !errors.As(cerr, &ce) || ce.Kind != dberrors.KindPermission {
		t.Errorf("Pwrite on read-only completion error = %v, want permission kind", cerr)
	}

	got, n := read(t, f, 0, 7)
	if n != 7 || string(got) != "content" {
		t.Errorf("read-only Pread = %q (n=%d)", got, n)
	}
}

func TestDiskFileLockUnlock(t *testing.T) {
	f, _ := openDisk(t, DefaultFlags())

	if err := f.LockFile(); err != nil {
		t.Fatalf("LockFile error: %v", err)
	}
	if err := f.UnlockFile(); err != nil {
		t.Fatalf("UnlockFile error: %v", err)
	}
}

func TestDiskIOOpenMissingWithoutCreate(t *testing.T) {
	io := NewDiskIO()
	_, err := io.OpenFile(filepath.Join(t.TempDir(), "missing.db"), OpenNone)
	if err == nil {
		t.Fatal("OpenFile(missing, no create) succeeded")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}

func TestDiskIORemoveFile(t *testing.T) {
	io := NewDiskIO()
	path := filepath.Join(t.TempDir(), "gone.db")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := io.RemoveFile(path); err != nil {
		t.Fatalf("RemoveFile error: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("file still exists after RemoveFile")
	}
}
