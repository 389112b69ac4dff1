package bpcpool

import (
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// EmptyMD5 is the digest BackupPC stores for zero-length file content.
var EmptyMD5 = mustHexDigest("d41d8cd98f00b204e9800998ecf8427e")

func mustHexDigest(hex string) []byte {
	b, err := HexToDigest(hex)
	if err != nil {
		panic(err)
	}
	return b
}

// sanitizePath splits a '/'-joined path into its non-empty components.
func sanitizePath(path string) []string {
	var out []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func hasPrefixComponents(components, prefix []string) bool {
	if len(prefix) > len(components) {
		return false
	}
	for i, p := range prefix {
		if components[i] != p {
			return false
		}
	}
	return true
}

// View resolves dotted path components down to a FileRecord listing or a
// readable byte stream, routing through the merge engine once a share has
// been selected. Listings go through the injected HostIndex and
// DirectoryLister capabilities only; ReadFile locates and opens the pool
// content under Topdir directly on the filesystem.
type View struct {
	Topdir  string
	Hosts   HostIndex
	Locator DirectoryLister
	Merge   *MergeEngine
}

// NewView builds the production View rooted at topdir.
func NewView(topdir string) *View {
	hosts := NewHostIndex(topdir)
	locator := NewAttributeLocator(topdir)
	return &View{
		Topdir:  topdir,
		Hosts:   hosts,
		Locator: locator,
		Merge:   &MergeEngine{Hosts: hosts, Locator: locator},
	}
}

// listSharesOf matches the in-share path components against the share names
// of a backup, selecting the longest matching share and collecting the
// synthetic one-level-deeper directory names for shares that only partially
// match.
func (v *View) listSharesOf(host string, backup uint32, path []string) (synthetic []string, selectedShare string, shareSize int, hasSelection bool) {
	shares, err := v.Hosts.ListShares(host, backup)
	if err != nil {
		return nil, "", 0, false
	}

	// Sort ascending by component count first, so that when several shares
	// match, the longest one is selected last and therefore wins.
	sort.Slice(shares, func(i, j int) bool {
		return len(sanitizePath(shares[i])) < len(sanitizePath(shares[j]))
	})

	for _, share := range shares {
		shareComponents := sanitizePath(share)
		switch {
		case hasPrefixComponents(path, shareComponents) || equalComponents(path, shareComponents):
			selectedShare = share
			shareSize = len(shareComponents)
			hasSelection = true
		case hasPrefixComponents(shareComponents, path):
			synthetic = append(synthetic, shareComponents[len(path)])
		}
	}

	synthetic = uniqueStrings(synthetic)
	return synthetic, selectedShare, shareSize, hasSelection
}

func equalComponents(a, b []string) bool {
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

// List resolves path to a listing of FileRecords: the host list at depth 0,
// a host's backups at depth 1, or a share-aware listing at depth 2+.
func (v *View) List(path []string) ([]FileRecord, error) {
	switch {
	case len(path) == 0:
		hosts, err := v.Hosts.ListHosts()
		if err != nil {
			return nil, err
		}
		records := make([]FileRecord, 0, len(hosts))
		for _, h := range hosts {
			records = append(records, FileRecord{Name: h, Type: TypeDir})
		}
		return records, nil

	case len(path) == 1:
		backups, err := v.Hosts.ListBackups(path[0])
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		records := make([]FileRecord, 0, len(backups))
		for _, b := range backups {
			records = append(records, FileRecord{
				Name:  strconv.FormatUint(uint64(b.Num), 10),
				Type:  TypeDir,
				MTime: b.StartTime,
			})
		}
		return records, nil

	default:
		backupNum, _ := strconv.ParseUint(path[1], 10, 32)
		synthetic, selectedShare, shareSize, hasSelection := v.listSharesOf(path[0], uint32(backupNum), path[2:])

		syntheticRecords := make([]FileRecord, 0, len(synthetic))
		for _, s := range synthetic {
			syntheticRecords = append(syntheticRecords, FileRecord{Name: s, Type: TypeDir})
		}

		if !hasSelection {
			return syntheticRecords, nil
		}

		dirPath := strings.Join(path[2+shareSize:], "/")
		records, err := v.Merge.Listing(path[0], uint32(backupNum), selectedShare, dirPath)
		if err != nil {
			return nil, err
		}
		records = append(records, syntheticRecords...)
		sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
		return records, nil
	}
}

// ReadFile resolves the trailing component of path as a filename within its
// parent listing, then opens the corresponding pool content.
func (v *View) ReadFile(path []string) (io.ReadCloser, error) {
	if len(path) == 0 {
		return nil, ErrNotFound
	}
	filename := path[len(path)-1]
	parent := path[:len(path)-1]

	records, err := v.List(parent)
	if err != nil {
		return nil, err
	}

	var found *FileRecord
	for i := range records {
		if records[i].Name == filename {
			found = &records[i]
			break
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}

	if len(found.Digest) > 2 && !digestEqual(found.Digest, EmptyMD5) {
		poolPath, compressed, err := LocateDigest(v.Topdir, found.Digest, nil)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(poolPath)
		if err != nil {
			return nil, err
		}
		if !compressed {
			return f, nil
		}
		pr, err := NewPoolReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &poolReadCloser{PoolReader: pr, file: f}, nil
	}

	return io.NopCloser(strings.NewReader("")), nil
}

// poolReadCloser pairs a decompressing PoolReader with the underlying file
// that must be closed when the caller is done.
type poolReadCloser struct {
	*PoolReader
	file *os.File
}

func (p *poolReadCloser) Close() error { return p.file.Close() }

func digestEqual(a, b []byte) bool {
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
