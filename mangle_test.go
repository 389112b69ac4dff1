package bpcpool_test

import (
	"testing"

	"github.com/ngrash/bpcpool"
)

func TestDigestHexRoundtrip(t *testing.T) {
	digest := []byte{0x00, 0xff, 0x10, 0xab}
	hex := bpcpool.DigestToHex(digest)
	if hex != "00ff10ab" {
		t.Errorf("DigestToHex = %q, want 00ff10ab", hex)
	}

	back, err := bpcpool.HexToDigest(hex)
	if err != nil {
		t.Fatalf("HexToDigest: %v", err)
	}
	if len(back) != len(digest) {
		t.Fatalf("HexToDigest length = %d, want %d", len(back), len(digest))
	}
	for i := range digest {
		if back[i] != digest[i] {
			t.Errorf("byte %d = %#x, want %#x", i, back[i], digest[i])
		}
	}
}

func TestHexToDigestOddLength(t *testing.T) {
	if _, err := bpcpool.HexToDigest("abc"); err != bpcpool.ErrCorruptData {
		t.Errorf("HexToDigest(odd) error = %v, want ErrCorruptData", err)
	}
}

func TestMangleComponent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"simple", "fsimple"},
		{"with/slash", "fwith%2fslash"},
		{"with%percent", "fwith%25percent"},
		{"with\nnewline", "fwith%0anewline"},
		{"", ""},
	}
	for _, c := range cases {
		got := bpcpool.MangleComponent(c.in)
		if got != c.want {
			t.Errorf("MangleComponent(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestUnmangleComponentRoundtrip(t *testing.T) {
	names := []string{"simple", "with/slash", "with%percent", "with\nnewline", "with\rcr"}
	for _, name := range names {
		mangled := bpcpool.MangleComponent(name)
		got := bpcpool.UnmangleComponent(mangled)
		if got != name {
			t.Errorf("UnmangleComponent(MangleComponent(%q)) = %q, want %q", name, got, name)
		}
	}
}

func TestUnmangleComponentRequiresFPrefix(t *testing.T) {
	if got := bpcpool.UnmangleComponent("noprefix"); got != "" {
		t.Errorf("UnmangleComponent(no f prefix) = %q, want empty", got)
	}
}

func TestManglePathPerComponent(t *testing.T) {
	got := bpcpool.ManglePath("a/b/c")
	want := "fa/fb/fc"
	if got != want {
		t.Errorf("ManglePath = %q, want %q", got, want)
	}
}
