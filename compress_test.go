package bpcpool_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/ngrash/bpcpool"
)

// rewriteFrame zlib-compresses content and rewrites its first byte to one of
// BackupPC's magic bytes (0xd6 or 0xd7), matching what PoolReader expects to
// unwind.
func rewriteFrame(t *testing.T, content []byte, marker byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	frame := buf.Bytes()
	frame[0] = marker
	return frame
}

func TestPoolReaderSingleFrame(t *testing.T) {
	want := []byte("hello, backuppc pool")
	frame := rewriteFrame(t, want, 0xd6)

	pr, err := bpcpool.NewPoolReader(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("NewPoolReader: %v", err)
	}
	got, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPoolReaderConcatenatedFrames(t *testing.T) {
	part1 := []byte("first frame content")
	part2 := []byte("second frame content")
	var data bytes.Buffer
	data.Write(rewriteFrame(t, part1, 0xd6))
	data.Write(rewriteFrame(t, part2, 0xd7))

	pr, err := bpcpool.NewPoolReader(&data)
	if err != nil {
		t.Fatalf("NewPoolReader: %v", err)
	}
	got, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := append(append([]byte{}, part1...), part2...)
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPoolReaderEOFMarker(t *testing.T) {
	data := []byte{0xb3}
	pr, err := bpcpool.NewPoolReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewPoolReader: %v", err)
	}
	got, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %q, want empty", got)
	}
}

func TestPoolReaderSmallBuffer(t *testing.T) {
	want := bytes.Repeat([]byte("x"), 100)
	frame := rewriteFrame(t, want, 0xd6)

	pr, err := bpcpool.NewPoolReader(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("NewPoolReader: %v", err)
	}
	var got bytes.Buffer
	buf := make([]byte, 7)
	for {
		n, err := pr.Read(buf)
		got.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if !bytes.Equal(got.Bytes(), want) {
		t.Errorf("got %d bytes, want %d", got.Len(), len(want))
	}
}
