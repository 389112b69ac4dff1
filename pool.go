package bpcpool

import (
	"fmt"
	"os"
	"path/filepath"
)

// Pool is the top-level handle onto a BackupPC storage tree: the topdir
// holding pc/, pool/ and cpool/, plus the options that tune how its
// sub-components are constructed.
type Pool struct {
	Topdir string

	cacheSize   int
	collisionID *uint64
}

// Open constructs a Pool rooted at topdir, applying any Options.
func Open(topdir string, opts ...Option) (*Pool, error) {
	p := &Pool{Topdir: topdir}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// View returns a View over the pool, for read-only path resolution and
// listing without mounting a filesystem.
func (p *Pool) View() *View {
	return NewView(p.Topdir)
}

// FS returns a FUSE-mountable FS adapter over the pool, using the configured
// directory-listing cache size.
func (p *Pool) FS() *FS {
	return NewFS(p.Topdir, p.cacheSize)
}

// LocateDigest resolves digest against this pool's topdir and configured
// collision id.
func (p *Pool) LocateDigest(digest []byte) (path string, compressed bool, err error) {
	return LocateDigest(p.Topdir, digest, p.collisionID)
}

// LocateDigest resolves a content digest to its on-disk pool file, trying the
// uncompressed pool directory first and then the compressed cpool directory.
// collision, when non-nil, selects a specific collision id, written as a
// two-hex-digit prefix before the digest, instead of the bare digest filename.
func LocateDigest(topdir string, digest []byte, collision *uint64) (path string, compressed bool, err error) {
	if len(digest) < 2 {
		return "", false, ErrInvalidDigest
	}

	b0 := fmt.Sprintf("%02x", digest[0]&0xfe)
	b1 := fmt.Sprintf("%02x", digest[1]&0xfe)

	filename := DigestToHex(digest)
	if collision != nil {
		filename = fmt.Sprintf("%02x%s", *collision, filename)
	}

	poolPath := filepath.Join(topdir, "pool", b0, b1, filename)
	if _, statErr := os.Stat(poolPath); statErr == nil {
		return poolPath, false, nil
	}

	cpoolPath := filepath.Join(topdir, "cpool", b0, b1, filename)
	if _, statErr := os.Stat(cpoolPath); statErr == nil {
		return cpoolPath, true, nil
	}

	return "", false, ErrNotFound
}
