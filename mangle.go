package bpcpool

import (
	"fmt"
	"strings"
)

// DigestToHex renders a pool digest as lowercase hex, matching BackupPC's
// on-disk naming convention for pool files.
func DigestToHex(digest []byte) string {
	var sb strings.Builder
	sb.Grow(len(digest) * 2)
	for _, b := range digest {
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}

// HexToDigest parses a lowercase (or uppercase) hex string back into raw
// digest bytes. An odd-length or non-hex string is reported as corrupt data.
func HexToDigest(hex string) ([]byte, error) {
	if len(hex)%2 != 0 {
		return nil, ErrCorruptData
	}
	out := make([]byte, len(hex)/2)
	for i := range out {
		var b byte
		if _, err := fmt.Sscanf(hex[i*2:i*2+2], "%02x", &b); err != nil {
			return nil, ErrCorruptData
		}
		out[i] = b
	}
	return out, nil
}

// MangleComponent mangles a single path component the way BackupPC stores it
// on disk: prefixed with 'f', with '%', '/', '\n' and '\r' percent-hex-escaped.
func MangleComponent(name string) string {
	if name == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('f')
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch c {
		case '%', '/', '\n', '\r':
			fmt.Fprintf(&sb, "%%%02x", c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// UnmangleComponent reverses MangleComponent. A component not starting with
// 'f' is not a mangled name and is returned empty, matching the original
// tool's behavior.
func UnmangleComponent(name string) string {
	if name == "" {
		return ""
	}
	if name[0] != 'f' {
		return ""
	}
	var sb strings.Builder
	i := 1
	for i < len(name) {
		c := name[i]
		if c == '%' && i+2 < len(name) {
			var b byte
			if _, err := fmt.Sscanf(name[i+1:i+3], "%02x", &b); err == nil {
				sb.WriteByte(b)
				i += 3
				continue
			}
		}
		sb.WriteByte(c)
		i++
	}
	return sb.String()
}

// ManglePath mangles every '/'-separated component of a path independently,
// matching BackupPC's directory-entry naming, where each path element is
// mangled on its own rather than the path as a whole.
func ManglePath(path string) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = MangleComponent(p)
	}
	return strings.Join(parts, "/")
}
