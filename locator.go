package bpcpool

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// AttributeLocator finds and decodes the attribute files that back a
// directory listing or an inode table entry.
type AttributeLocator struct {
	Topdir string
}

// NewAttributeLocator constructs an AttributeLocator rooted at topdir.
func NewAttributeLocator(topdir string) *AttributeLocator {
	return &AttributeLocator{Topdir: topdir}
}

// readAttribFile opens a resolved pool path and decodes its FileRecord
// stream, decompressing first when the pool copy is compressed.
func (a *AttributeLocator) readAttribFile(path string, compressed bool) ([]FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !compressed {
		return DecodeAttributeFile(f)
	}
	pr, err := NewPoolReader(f)
	if err != nil {
		return nil, err
	}
	return DecodeAttributeFile(pr)
}

// findAttribFile scans dir for the single file whose name starts with
// prefix, returning its full name.
func findAttribFile(dir, prefix string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			return entry.Name(), true
		}
	}
	return "", false
}

// listAttributes locates the attrib_*-style file under
// <topdir>/pc/<host>/<backup>/<attribDir> whose name starts with
// attribPrefix, and decodes it.
func (a *AttributeLocator) listAttributes(host string, backup uint32, attribDir, attribPrefix string) ([]FileRecord, error) {
	backupDir := filepath.Join(a.Topdir, "pc", host, fmt.Sprint(backup), attribDir)
	log.Printf("bpcpool: looking for attributes in %s", backupDir)

	name, found := findAttribFile(backupDir, attribPrefix)
	if !found {
		return nil, nil
	}

	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return nil, nil
	}
	suffix := name[idx+1:]
	if suffix == "0" {
		return nil, nil
	}

	digest, err := HexToDigest(suffix)
	if err != nil {
		return nil, err
	}
	path, compressed, err := LocateDigest(a.Topdir, digest, nil)
	if err != nil {
		return nil, err
	}
	return a.readAttribFile(path, compressed)
}

// ListDirectory lists the FileRecords of one directory within a share
// (per-directory flavor): attrib_dir = mangle(share)/mangle(dirPath).
func (a *AttributeLocator) ListDirectory(host string, backup uint32, share, dirPath string) ([]FileRecord, error) {
	var parts []string
	if share != "" {
		parts = append(parts, MangleComponent(share))
	}
	if dirPath != "" {
		parts = append(parts, ManglePath(dirPath))
	}
	attribDir := strings.Join(parts, "/")
	return a.listAttributes(host, backup, attribDir, "attrib_")
}

// ListInodeTable looks up the attribute file holding the per-inode digest
// table for a given inode number (per-inode flavor).
func (a *AttributeLocator) ListInodeTable(host string, backup uint32, inode uint64) ([]FileRecord, error) {
	dir := (inode >> 17) & 0x7f
	file := (inode >> 10) & 0x7f
	attribDir := fmt.Sprintf("inode/%02x", dir)
	attribPrefix := fmt.Sprintf("attrib%02x_", file)
	return a.listAttributes(host, backup, attribDir, attribPrefix)
}
