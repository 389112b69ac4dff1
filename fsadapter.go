package bpcpool

import (
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	lru "github.com/hashicorp/golang-lru"
)

const (
	ttlHosts   = 86400 * time.Second
	ttlBackups = 3600 * time.Second
	ttlRest    = 1000000 * time.Second

	rootIno = 1

	defaultCacheSize = 2048

	seekChunkSize = 32 * 1024
)

// dirEntry is a reverse mapping from an allocated inode number back to its
// logical path and parent, the FS adapter's equivalent of an inode table
// entry.
type dirEntry struct {
	path      []string
	parentIno uint64
}

// entryAttr pairs a FileRecord with the inode allocated for it, cached per
// directory listing.
type entryAttr struct {
	name string
	ino  uint64
	rec  FileRecord
}

// openHandle is one open file's seek-emulating state: the underlying stream
// is not seekable, so a backward seek recreates the reader and a forward
// seek discards bytes in chunks.
type openHandle struct {
	path   []string
	offset int64
	reader io.ReadCloser
}

// FS implements fuse.RawFileSystem over a View, presenting the host/backup/
// share/path hierarchy as a read-only mountable filesystem.
type FS struct {
	fuse.RawFileSystem

	view *View

	mu      sync.Mutex
	inodes  map[uint64]dirEntry
	cache   *lru.Cache
	opened  map[uint64]*openHandle
	nextFh  uint64
}

// NewFS builds an FS adapter over topdir with the given directory-listing
// cache size (0 selects the default of 2048 entries).
func NewFS(topdir string, cacheSize int) *FS {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which is excluded
		// above.
		panic(err)
	}
	return &FS{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		view:          NewView(topdir),
		inodes:        make(map[uint64]dirEntry),
		cache:         cache,
		opened:        make(map[uint64]*openHandle),
	}
}

func (fs *FS) String() string { return "bpcpool" }

func (fs *FS) SetDebug(bool) {}

// allocateIno hashes the '/'-joined path with a fixed-seed 64-bit hash and
// resolves collisions by quadratic probing, returning the same inode for
// the same dirEntry and a fresh one otherwise.
func (fs *FS) allocateIno(entry dirEntry) uint64 {
	key := strings.Join(entry.path, "/")
	ino := fnv64aSeeded(key)
	if ino == 0 || ino == rootIno {
		ino++
	}

	probe := uint64(1)
	for {
		existing, ok := fs.inodes[ino]
		if !ok {
			return ino
		}
		if existing.parentIno == entry.parentIno && pathEqual(existing.path, entry.path) {
			return ino
		}
		ino += probe * probe
		probe++
	}
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fnv64aSeeded is a fixed-seed, non-cryptographic 64-bit hash used purely
// for inode allocation, in the spirit of the xxHash64 used by the reference
// implementation this adapter is modeled on.
func fnv64aSeeded(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// ttlForDepth maps an entry's path-component count to its cache TTL: hosts
// (depth 1) get one day, backups (depth 2) the shortest TTL of one hour, and
// everything deeper the longest of all since shares/files rarely change.
func ttlForDepth(depth int) time.Duration {
	switch depth {
	case 1:
		return ttlHosts
	case 2:
		return ttlBackups
	default:
		return ttlRest
	}
}

func fileKind(t FileType) uint32 {
	switch t {
	case TypeFile, TypeHardlink:
		return syscall.S_IFREG
	case TypeSymlink:
		return syscall.S_IFLNK
	case TypeChardev:
		return syscall.S_IFCHR
	case TypeBlockdev:
		return syscall.S_IFBLK
	case TypeDir:
		return syscall.S_IFDIR
	case TypeFifo:
		return syscall.S_IFIFO
	case TypeSocket:
		return syscall.S_IFSOCK
	default:
		return syscall.S_IFREG
	}
}

func fillAttr(out *fuse.Attr, ino uint64, rec FileRecord) {
	out.Ino = ino
	out.Size = rec.Size
	out.Blocks = rec.Size / 512
	out.Blksize = 512
	out.Atime = rec.MTime
	out.Mtime = rec.MTime
	out.Ctime = rec.MTime
	out.Mode = fileKind(rec.Type) | uint32(rec.Mode)
	out.Nlink = rec.NLinks
	out.Uid = rec.UID
	out.Gid = rec.GID
}

// listChildren resolves ino to its path, lists it through the View (caching
// the result), and returns the per-entry inode-tagged attributes. Unknown
// and Deleted records are filtered out, and the result is sorted by name so
// that readdir offsets are stable.
func (fs *FS) listChildren(ino uint64) ([]entryAttr, error) {
	fs.mu.Lock()
	if cached, ok := fs.cache.Get(ino); ok {
		fs.mu.Unlock()
		return cached.([]entryAttr), nil
	}
	entry, known := fs.inodes[ino]
	fs.mu.Unlock()

	var path []string
	if ino == rootIno {
		path = nil
	} else if known {
		path = entry.path
	} else {
		return nil, ErrNotFound
	}

	records, err := fs.view.List(path)
	if err != nil {
		log.Printf("bpcpool: error listing %v: %v", path, err)
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

	fs.mu.Lock()
	children := make([]entryAttr, 0, len(records))
	for _, rec := range records {
		if rec.Type == TypeUnknown || rec.Type == TypeDeleted {
			continue
		}
		childPath := append(append([]string{}, path...), rec.Name)
		childIno := fs.allocateIno(dirEntry{path: childPath, parentIno: ino})
		fs.inodes[childIno] = dirEntry{path: childPath, parentIno: ino}
		children = append(children, entryAttr{name: rec.Name, ino: childIno, rec: rec})
	}
	fs.cache.Add(ino, children)
	fs.mu.Unlock()

	return children, nil
}

// Lookup implements fuse.RawFileSystem.
func (fs *FS) Lookup(header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	children, err := fs.listChildren(header.NodeId)
	if err != nil {
		return fuse.ENOENT
	}
	for _, c := range children {
		if c.name == name {
			fillAttr(&out.Attr, c.ino, c.rec)
			out.NodeId = c.ino
			ttl := ttlForDepth(len(fs.pathOf(c.ino)))
			out.SetEntryTimeout(ttl)
			out.SetAttrTimeout(ttl)
			return fuse.OK
		}
	}
	return fuse.ENOENT
}

func (fs *FS) pathOf(ino uint64) []string {
	if ino == rootIno {
		return nil
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if e, ok := fs.inodes[ino]; ok {
		return e.path
	}
	return nil
}

// GetAttr implements fuse.RawFileSystem.
func (fs *FS) GetAttr(input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	ino := input.NodeId
	if ino == rootIno {
		out.Attr = fuse.Attr{Ino: rootIno, Mode: syscall.S_IFDIR | 0755, Nlink: 1}
		out.SetTimeout(ttlHosts)
		return fuse.OK
	}

	fs.mu.Lock()
	entry, ok := fs.inodes[ino]
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	siblings, err := fs.listChildren(entry.parentIno)
	if err != nil {
		return fuse.ENOENT
	}
	for _, c := range siblings {
		if c.ino == ino {
			fillAttr(&out.Attr, ino, c.rec)
			out.SetTimeout(ttlForDepth(len(entry.path)))
			return fuse.OK
		}
	}
	return fuse.ENOENT
}

// Readlink implements fuse.RawFileSystem, reading the entire link target
// into memory (link targets are small by construction).
func (fs *FS) Readlink(header *fuse.InHeader) ([]byte, fuse.Status) {
	path := fs.pathOf(header.NodeId)
	r, err := fs.view.ReadFile(path)
	if err != nil {
		return nil, fuse.ENOENT
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fuse.ENOENT
	}
	return data, fuse.OK
}

func (fs *FS) openPath(path []string) (uint64, fuse.Status) {
	reader, err := fs.view.ReadFile(path)
	if err != nil {
		log.Printf("bpcpool: can't open %v: %v", path, err)
		return 0, fuse.ENOENT
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextFh++
	fh := fs.nextFh
	fs.opened[fh] = &openHandle{path: path, offset: 0, reader: reader}
	return fh, fuse.OK
}

// Open implements fuse.RawFileSystem.
func (fs *FS) Open(input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	path := fs.pathOf(input.NodeId)
	fh, status := fs.openPath(path)
	if !status.Ok() {
		return status
	}
	out.Fh = fh
	return fuse.OK
}

// OpenDir implements fuse.RawFileSystem. Directories need no open state of
// their own beyond validating the inode exists; the listing cache does the
// rest.
func (fs *FS) OpenDir(input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	if input.NodeId != rootIno {
		fs.mu.Lock()
		_, ok := fs.inodes[input.NodeId]
		fs.mu.Unlock()
		if !ok {
			return fuse.ENOENT
		}
	}
	out.Fh = input.NodeId
	return fuse.OK
}

// Read implements fuse.RawFileSystem with seek emulation: a backward seek
// recreates the reader from scratch, a forward seek discards bytes in 32KiB
// chunks.
func (fs *FS) Read(input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	fs.mu.Lock()
	h, ok := fs.opened[input.Fh]
	fs.mu.Unlock()
	if !ok {
		return nil, fuse.EIO
	}

	offset := int64(input.Offset)

	if offset < h.offset {
		h.reader.Close()
		newReader, err := fs.view.ReadFile(h.path)
		if err != nil {
			return nil, fuse.ENOENT
		}
		h.reader = newReader
		h.offset = 0
	}

	if offset > h.offset {
		discard := make([]byte, seekChunkSize)
		remaining := offset - h.offset
		for remaining > 0 {
			toRead := int64(len(discard))
			if remaining < toRead {
				toRead = remaining
			}
			n, err := h.reader.Read(discard[:toRead])
			remaining -= int64(n)
			h.offset += int64(n)
			if n == 0 || err != nil {
				break
			}
		}
	}

	n, err := h.reader.Read(buf)
	h.offset += int64(n)
	if err != nil && err != io.EOF && n == 0 {
		return nil, fuse.EIO
	}
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

// Release implements fuse.RawFileSystem.
func (fs *FS) Release(input *fuse.ReleaseIn) {
	fs.mu.Lock()
	h, ok := fs.opened[input.Fh]
	delete(fs.opened, input.Fh)
	fs.mu.Unlock()
	if ok {
		h.reader.Close()
	}
}

// ReleaseDir implements fuse.RawFileSystem. Directory handles carry no
// separate state, so there is nothing to release.
func (fs *FS) ReleaseDir(input *fuse.ReleaseIn) {}

// ReadDir implements fuse.RawFileSystem. Offset 0 emits the synthetic "."
// and ".." entries (for non-root directories) followed by the cached
// listing at offsets 2, 3, 4, ...
func (fs *FS) ReadDir(input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	ino := input.Fh
	children, err := fs.listChildren(ino)
	if err != nil {
		return fuse.ENOENT
	}

	offset := int64(input.Offset)
	pos := int64(0)

	if ino != rootIno {
		fs.mu.Lock()
		parent := fs.inodes[ino].parentIno
		fs.mu.Unlock()
		if pos >= offset {
			if !out.AddDirEntry(fuse.DirEntry{Name: ".", Mode: syscall.S_IFDIR, Ino: ino}) {
				return fuse.OK
			}
		}
		pos++
		if pos >= offset {
			if !out.AddDirEntry(fuse.DirEntry{Name: "..", Mode: syscall.S_IFDIR, Ino: parent}) {
				return fuse.OK
			}
		}
		pos++
	}

	for _, c := range children {
		if pos >= offset {
			if !out.AddDirEntry(fuse.DirEntry{Name: c.name, Mode: fileKind(c.rec.Type), Ino: c.ino}) {
				return fuse.OK
			}
		}
		pos++
	}
	return fuse.OK
}
