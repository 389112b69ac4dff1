package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/ngrash/bpcpool"
)

const usage = `bpcfs - BackupPC pool CLI and FUSE mount tool

Usage:
  bpcfs hosts                                List known hosts
  bpcfs backups <host>                       List backups for a host
  bpcfs ls <host> <backup> [<path>]          List a directory inside a backup
  bpcfs cat <host> <backup> <path>           Print a file's content
  bpcfs decode-attribute <file>               Decode a raw attribute file
  bpcfs mount <mountpoint>                    Mount the pool read-only over FUSE
  bpcfs help                                  Show this help message

Environment:
  BPC_TOPDIR   BackupPC topdir (default /var/lib/backuppc)

Examples:
  bpcfs hosts
  bpcfs backups myhost
  bpcfs ls myhost 12 home/user
  bpcfs cat myhost 12 home/user/notes.txt
`

func topdir() string {
	if t := os.Getenv("BPC_TOPDIR"); t != "" {
		return t
	}
	return "/var/lib/backuppc"
}

func splitPath(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "hosts":
		err = listHosts()

	case "backups":
		if len(os.Args) < 3 {
			fmt.Println("Error: Missing host")
			fmt.Println(usage)
			os.Exit(1)
		}
		err = listBackups(os.Args[2])

	case "ls":
		if len(os.Args) < 4 {
			fmt.Println("Error: Missing host or backup number")
			fmt.Println(usage)
			os.Exit(1)
		}
		path := ""
		if len(os.Args) > 4 {
			path = os.Args[4]
		}
		err = listDir(os.Args[2], os.Args[3], path)

	case "cat":
		if len(os.Args) < 5 {
			fmt.Println("Error: Missing host, backup number or path")
			fmt.Println(usage)
			os.Exit(1)
		}
		err = catFile(os.Args[2], os.Args[3], os.Args[4])

	case "decode-attribute":
		if len(os.Args) < 3 {
			fmt.Println("Error: Missing attribute file path")
			fmt.Println(usage)
			os.Exit(1)
		}
		err = decodeAttribute(os.Args[2])

	case "mount":
		if len(os.Args) < 3 {
			fmt.Println("Error: Missing mountpoint")
			fmt.Println(usage)
			os.Exit(1)
		}
		err = mountFS(os.Args[2])

	case "help":
		fmt.Println(usage)

	default:
		fmt.Printf("Error: Unknown command '%s'\n", cmd)
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func listHosts() error {
	hosts, err := bpcpool.ListHosts(topdir())
	if err != nil {
		return fmt.Errorf("listing hosts: %w", err)
	}
	for _, h := range hosts {
		fmt.Println(h)
	}
	return nil
}

func listBackups(host string) error {
	backups, err := bpcpool.ListBackups(topdir(), host)
	if err != nil {
		return fmt.Errorf("listing backups for %s: %w", host, err)
	}
	for _, b := range backups {
		startTime := time.Unix(int64(b.StartTime), 0)
		fmt.Printf("%-6d %-8s %-20s level=%d fill=%v\n", b.Num, b.Type, startTime.Format(time.RFC1123), b.Level, b.NoFill == 0)
	}
	return nil
}

func parseBackupNum(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid backup number %q: %w", s, err)
	}
	return uint32(n), nil
}

func listDir(host, backupArg, path string) error {
	if _, err := parseBackupNum(backupArg); err != nil {
		return err
	}
	view := bpcpool.NewView(topdir())
	components := append([]string{host, backupArg}, splitPath(path)...)
	records, err := view.List(components)
	if err != nil {
		return fmt.Errorf("listing %s/%s/%s: %w", host, backupArg, path, err)
	}
	for _, rec := range records {
		printRecord(rec)
	}
	return nil
}

func printRecord(rec bpcpool.FileRecord) {
	mode := bpcpool.UnixToMode(uint32(rec.Mode))
	size := fmt.Sprintf("%10d", rec.Size)
	mtime := time.Unix(int64(rec.MTime), 0).Format("Jan 02 15:04")
	fmt.Printf("%s %s %s %s\n", mode, size, mtime, rec.Name)
}

func catFile(host, backupArg, path string) error {
	view := bpcpool.NewView(topdir())
	components := append([]string{host, backupArg}, splitPath(path)...)
	r, err := view.ReadFile(components)
	if err != nil {
		return fmt.Errorf("reading %s/%s/%s: %w", host, backupArg, path, err)
	}
	defer r.Close()
	_, err = io.Copy(os.Stdout, r)
	return err
}

func decodeAttribute(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	var records []bpcpool.FileRecord
	if header[0] == 0x17 && header[1] == 0x56 && header[2] == 0x53 && header[3] == 0x53 {
		records, err = bpcpool.DecodeAttributeFile(f)
	} else {
		var pr *bpcpool.PoolReader
		pr, err = bpcpool.NewPoolReader(f)
		if err == nil {
			records, err = bpcpool.DecodeAttributeFile(pr)
		}
	}
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	for _, rec := range records {
		printRecord(rec)
	}
	return nil
}

func mountFS(mountpoint string) error {
	pool, err := bpcpool.Open(topdir())
	if err != nil {
		return fmt.Errorf("opening pool: %w", err)
	}
	fs := pool.FS()

	server, err := fuse.NewServer(fs, mountpoint, &fuse.MountOptions{
		Name:    "bpcfs",
		FsName:  topdir(),
		Debug:   os.Getenv("BPCFS_DEBUG") != "",
		AllowOther: false,
	})
	if err != nil {
		return fmt.Errorf("mounting at %s: %w", mountpoint, err)
	}

	fmt.Printf("mounted %s at %s\n", topdir(), mountpoint)
	server.Serve()
	return nil
}
