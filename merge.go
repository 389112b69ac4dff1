package bpcpool

import "encoding/binary"

// HostIndex is the capability the merge engine and the view need to resolve
// hosts and backup fill chains, kept as an interface so tests can supply a
// hand-written fake instead of touching the filesystem.
type HostIndex interface {
	ListHosts() ([]string, error)
	ListBackups(host string) ([]BackupInfo, error)
	ListBackupsToFill(host string, backup uint32) ([]BackupInfo, error)
	ListShares(host string, backup uint32) ([]string, error)
}

// DirectoryLister is the capability the merge engine needs to fetch one
// backup's raw directory or inode-table listing, satisfied by
// *AttributeLocator in production and a fake in tests.
type DirectoryLister interface {
	ListDirectory(host string, backup uint32, share, dirPath string) ([]FileRecord, error)
	ListInodeTable(host string, backup uint32, inode uint64) ([]FileRecord, error)
}

// topdirHostIndex is the production HostIndex, backed by the on-disk host
// manifests under topdir.
type topdirHostIndex struct {
	topdir string
}

// NewHostIndex returns the production HostIndex rooted at topdir.
func NewHostIndex(topdir string) HostIndex {
	return &topdirHostIndex{topdir: topdir}
}

func (h *topdirHostIndex) ListHosts() ([]string, error) { return ListHosts(h.topdir) }

func (h *topdirHostIndex) ListBackups(host string) ([]BackupInfo, error) {
	return ListBackups(h.topdir, host)
}

func (h *topdirHostIndex) ListBackupsToFill(host string, backup uint32) ([]BackupInfo, error) {
	return ListBackupsToFill(h.topdir, host, backup)
}

func (h *topdirHostIndex) ListShares(host string, backup uint32) ([]string, error) {
	return ListShares(h.topdir, host, backup)
}

// inodeKeyHex renders an inode number the way the per-inode attribute table
// names its entries: the 8-byte little-endian representation with trailing
// zero bytes stripped, hex-encoded.
func inodeKeyHex(inode uint64) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], inode)
	end := len(buf)
	for end > 1 && buf[end-1] == 0 {
		end--
	}
	return DigestToHex(buf[:end])
}

// MergeEngine reconstructs the filled (as-if-full) directory listing for an
// incremental backup by overlaying the fill chain oldest-first.
type MergeEngine struct {
	Hosts   HostIndex
	Locator DirectoryLister
}

// NewMergeEngine builds a MergeEngine over the production host index and
// attribute locator rooted at topdir.
func NewMergeEngine(topdir string) *MergeEngine {
	return &MergeEngine{
		Hosts:   NewHostIndex(topdir),
		Locator: NewAttributeLocator(topdir),
	}
}

// Listing returns the set of FileRecords a user would observe in dirPath of
// share for the given backup, as if that backup were full.
func (m *MergeEngine) Listing(host string, backup uint32, share, dirPath string) ([]FileRecord, error) {
	chain, err := m.Hosts.ListBackupsToFill(host, backup)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]FileRecord)
	for _, b := range chain {
		records, err := m.Locator.ListDirectory(host, b.Num, share, dirPath)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if rec.Type == TypeDeleted {
				delete(merged, rec.Name)
				continue
			}
			if rec.NLinks > 0 && rec.Inode != 0 {
				key := inodeKeyHex(rec.Inode)
				inodeRecords, err := m.Locator.ListInodeTable(host, b.Num, rec.Inode)
				if err != nil {
					return nil, err
				}
				for _, ir := range inodeRecords {
					if ir.Name == key {
						rec.Digest = ir.Digest
						break
					}
				}
			}
			merged[rec.Name] = rec
		}
	}

	out := make([]FileRecord, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}
	return out, nil
}
