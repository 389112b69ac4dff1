package bpcpool_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ngrash/bpcpool"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLocateDigestInPool(t *testing.T) {
	dir := t.TempDir()
	digest := []byte{0x12, 0x34, 0xab, 0xcd}
	hex := bpcpool.DigestToHex(digest)
	writeFile(t, filepath.Join(dir, "pool", "12", "34", hex))

	path, compressed, err := bpcpool.LocateDigest(dir, digest, nil)
	if err != nil {
		t.Fatalf("LocateDigest: %v", err)
	}
	if compressed {
		t.Error("expected uncompressed pool copy")
	}
	want := filepath.Join(dir, "pool", "12", "34", hex)
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestLocateDigestInCpool(t *testing.T) {
	dir := t.TempDir()
	digest := []byte{0x12, 0x34, 0xab, 0xcd}
	hex := bpcpool.DigestToHex(digest)
	writeFile(t, filepath.Join(dir, "cpool", "12", "34", hex))

	path, compressed, err := bpcpool.LocateDigest(dir, digest, nil)
	if err != nil {
		t.Fatalf("LocateDigest: %v", err)
	}
	if !compressed {
		t.Error("expected compressed pool copy")
	}
	want := filepath.Join(dir, "cpool", "12", "34", hex)
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestLocateDigestNotFound(t *testing.T) {
	dir := t.TempDir()
	_, _, err := bpcpool.LocateDigest(dir, []byte{0x00, 0x01}, nil)
	if err != bpcpool.ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestLocateDigestTooShort(t *testing.T) {
	dir := t.TempDir()
	_, _, err := bpcpool.LocateDigest(dir, []byte{0x00}, nil)
	if err != bpcpool.ErrInvalidDigest {
		t.Errorf("error = %v, want ErrInvalidDigest", err)
	}
}

func TestLocateDigestCollisionID(t *testing.T) {
	dir := t.TempDir()
	digest := []byte{0x12, 0x34, 0xab, 0xcd}
	hex := bpcpool.DigestToHex(digest)
	collision := uint64(0x7)
	name := "07" + hex
	writeFile(t, filepath.Join(dir, "pool", "12", "34", name))

	path, _, err := bpcpool.LocateDigest(dir, digest, &collision)
	if err != nil {
		t.Fatalf("LocateDigest: %v", err)
	}
	want := filepath.Join(dir, "pool", "12", "34", name)
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestOpenPoolAppliesOptions(t *testing.T) {
	dir := t.TempDir()
	p, err := bpcpool.Open(dir, bpcpool.WithCacheSize(16))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.Topdir != dir {
		t.Errorf("Topdir = %q, want %q", p.Topdir, dir)
	}
	// FS and View should both build successfully over the configured pool.
	if v := p.View(); v == nil {
		t.Error("View() returned nil")
	}
	if fsys := p.FS(); fsys == nil {
		t.Error("FS() returned nil")
	}
}
