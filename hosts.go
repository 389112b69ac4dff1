package bpcpool

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// BackupInfo is one parsed line of a host's "backups" manifest file.
type BackupInfo struct {
	Num           uint32
	Type          string
	StartTime     uint64
	EndTime       uint64
	NFiles        uint32
	Size          uint64
	NFilesExist   uint32
	SizeExist     uint64
	NFilesNew     uint32
	SizeNew       uint64
	XferErrs      uint32
	XferBadFile   uint32
	XferBadShare  uint32
	TarErrs       uint32
	Compress      uint32
	SizeExistComp uint64
	SizeNewComp   uint64
	NoFill        uint32
	FillFromNum   int32
	Mangle        uint64
	XferMethod    string
	Level         uint32
	Charset       string
	Version       string
	InodeLast     uint64
}

func parseUint32(s string) uint32 {
	v, _ := strconv.ParseUint(s, 10, 32)
	return uint32(v)
}

func parseUint64(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

func parseFillFromNum(s string) int32 {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return -1
	}
	return int32(v)
}

// ListHosts enumerates the directories under <topdir>/pc, in directory
// listing order.
func ListHosts(topdir string) ([]string, error) {
	pcDir := filepath.Join(topdir, "pc")
	entries, err := os.ReadDir(pcDir)
	if err != nil {
		return nil, err
	}

	var hosts []string
	for _, entry := range entries {
		if entry.IsDir() {
			hosts = append(hosts, entry.Name())
		}
	}
	return hosts, nil
}

// ListBackups reads <topdir>/pc/<host>/backups and parses each tab-separated
// line per the BackupInfo field order. Malformed numeric fields default to
// zero, except FillFromNum which defaults to -1; a malformed line is still
// emitted, never silently dropped.
func ListBackups(topdir, host string) ([]BackupInfo, error) {
	path := filepath.Join(topdir, "pc", host, "backups")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var backups []BackupInfo
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		field := func(i int) string {
			if i < len(fields) {
				return fields[i]
			}
			return ""
		}

		backups = append(backups, BackupInfo{
			Num:           parseUint32(field(0)),
			Type:          field(1),
			StartTime:     parseUint64(field(2)),
			EndTime:       parseUint64(field(3)),
			NFiles:        parseUint32(field(4)),
			Size:          parseUint64(field(5)),
			NFilesExist:   parseUint32(field(6)),
			SizeExist:     parseUint64(field(7)),
			NFilesNew:     parseUint32(field(8)),
			SizeNew:       parseUint64(field(9)),
			XferErrs:      parseUint32(field(10)),
			XferBadFile:   parseUint32(field(11)),
			XferBadShare:  parseUint32(field(12)),
			TarErrs:       parseUint32(field(13)),
			Compress:      parseUint32(field(14)),
			SizeExistComp: parseUint64(field(15)),
			SizeNewComp:   parseUint64(field(16)),
			NoFill:        parseUint32(field(17)),
			FillFromNum:   parseFillFromNum(field(18)),
			Mangle:        parseUint64(field(19)),
			XferMethod:    field(20),
			Level:         parseUint32(field(21)),
			Charset:       field(22),
			Version:       field(23),
			InodeLast:     parseUint64(field(24)),
		})
	}
	if err := scanner.Err(); err != nil {
		return backups, err
	}

	log.Printf("bpcpool: found %d backups for host %s", len(backups), host)
	return backups, nil
}

// ListShares enumerates the mangled share directories directly under
// <topdir>/pc/<host>/<backup>, unmangling their names.
func ListShares(topdir, host string, backup uint32) ([]string, error) {
	dir := filepath.Join(topdir, "pc", host, strconv.FormatUint(uint64(backup), 10))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var shares []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		share := UnmangleComponent(entry.Name())
		if share != "" {
			shares = append(shares, share)
		}
	}
	return shares, nil
}

// ListBackupsToFill returns the fill chain for backup n, oldest first: the
// first backup at or before n with NoFill == 0, through n itself.
func ListBackupsToFill(topdir, host string, n uint32) ([]BackupInfo, error) {
	all, err := ListBackups(topdir, host)
	if err != nil {
		return nil, err
	}

	byNum := make(map[uint32]BackupInfo, len(all))
	for _, b := range all {
		byNum[b.Num] = b
	}

	target, ok := byNum[n]
	if !ok {
		return nil, ErrNotFound
	}

	var chain []BackupInfo
	cur := target
	for {
		chain = append(chain, cur)
		if cur.NoFill == 0 {
			break
		}
		prevNum := cur.Num - 1
		prev, ok := byNum[prevNum]
		if !ok {
			break
		}
		cur = prev
	}

	// chain was built newest-first; reverse to oldest-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
