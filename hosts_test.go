package bpcpool_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ngrash/bpcpool"
)

func writeBackupsFile(t *testing.T, topdir, host string, lines []string) {
	t.Helper()
	dir := filepath.Join(topdir, "pc", host)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "backups"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func backupLine(num int, noFill int) string {
	fields := make([]string, 25)
	fields[0] = itoa(num)
	fields[1] = "full"
	fields[17] = itoa(noFill)
	fields[18] = "-1"
	for i, f := range fields {
		if f == "" {
			fields[i] = "0"
		}
	}
	return strings.Join(fields, "\t")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func TestListHosts(t *testing.T) {
	dir := t.TempDir()
	for _, h := range []string{"alpha", "beta"} {
		if err := os.MkdirAll(filepath.Join(dir, "pc", h), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
	}
	hosts, err := bpcpool.ListHosts(dir)
	if err != nil {
		t.Fatalf("ListHosts: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("got %d hosts, want 2", len(hosts))
	}
}

func TestListBackups(t *testing.T) {
	dir := t.TempDir()
	writeBackupsFile(t, dir, "host1", []string{backupLine(0, 0), backupLine(1, 1), backupLine(2, 1)})

	backups, err := bpcpool.ListBackups(dir, "host1")
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("got %d backups, want 3", len(backups))
	}
	if backups[0].Num != 0 || backups[0].NoFill != 0 {
		t.Errorf("backup 0 = %+v", backups[0])
	}
	if backups[2].Num != 2 || backups[2].NoFill != 1 {
		t.Errorf("backup 2 = %+v", backups[2])
	}
}

func TestListBackupsToFill(t *testing.T) {
	dir := t.TempDir()
	writeBackupsFile(t, dir, "host1", []string{backupLine(0, 0), backupLine(1, 1), backupLine(2, 1)})

	chain, err := bpcpool.ListBackupsToFill(dir, "host1", 2)
	if err != nil {
		t.Fatalf("ListBackupsToFill: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("got %d backups in chain, want 3", len(chain))
	}
	for i, want := range []uint32{0, 1, 2} {
		if chain[i].Num != want {
			t.Errorf("chain[%d].Num = %d, want %d", i, chain[i].Num, want)
		}
	}
}

func TestListBackupsToFillStopsAtFullBackup(t *testing.T) {
	dir := t.TempDir()
	writeBackupsFile(t, dir, "host1", []string{backupLine(0, 1), backupLine(1, 0), backupLine(2, 1)})

	chain, err := bpcpool.ListBackupsToFill(dir, "host1", 2)
	if err != nil {
		t.Fatalf("ListBackupsToFill: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("got %d backups in chain, want 2 (starting at the full backup 1)", len(chain))
	}
	if chain[0].Num != 1 || chain[1].Num != 2 {
		t.Errorf("chain = %+v", chain)
	}
}

func TestListBackupsToFillUnknownBackup(t *testing.T) {
	dir := t.TempDir()
	writeBackupsFile(t, dir, "host1", []string{backupLine(0, 0)})

	_, err := bpcpool.ListBackupsToFill(dir, "host1", 99)
	if err != bpcpool.ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListShares(t *testing.T) {
	dir := t.TempDir()
	shareDir := filepath.Join(dir, "pc", "host1", "3", bpcpool.MangleComponent("home"))
	if err := os.MkdirAll(shareDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	shares, err := bpcpool.ListShares(dir, "host1", 3)
	if err != nil {
		t.Fatalf("ListShares: %v", err)
	}
	if len(shares) != 1 || shares[0] != "home" {
		t.Errorf("shares = %v, want [home]", shares)
	}
}
