package bpcpool

import (
	"bufio"
	"io"

	"github.com/klauspost/compress/zlib"
)

// rewriteAdapter sits between the raw pool file and the zlib inflater. It
// rewrites the first byte of each logical frame: 0xd6/0xd7 stand in for the
// real zlib header byte 0x78, and 0xb3 marks an artificial end of frame.
type rewriteAdapter struct {
	br    *bufio.Reader
	first bool
}

func newRewriteAdapter(r io.Reader) *rewriteAdapter {
	return &rewriteAdapter{br: bufio.NewReader(r), first: true}
}

func (a *rewriteAdapter) Read(buf []byte) (int, error) {
	n, err := a.br.Read(buf)
	if a.first && n > 0 {
		a.first = false
		switch buf[0] {
		case 0xd6, 0xd7:
			buf[0] = 0x78
		case 0xb3:
			return 0, io.EOF
		}
	}
	return n, err
}

// ReadByte makes the adapter an io.ByteReader, so the inflater reads only up
// to the end of the current frame instead of buffering past it.
func (a *rewriteAdapter) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(a, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (a *rewriteAdapter) reset() {
	a.first = true
}

// hasMore reports whether the underlying buffered reader has at least one
// more byte available, without consuming it.
func (a *rewriteAdapter) hasMore() bool {
	_, err := a.br.Peek(1)
	return err == nil
}

// PoolReader decompresses a pool file, which is a concatenation of one or
// more independently framed zlib-like streams using BackupPC's first-byte
// rewrite convention. Callers see a single seamless byte stream.
type PoolReader struct {
	adapter *rewriteAdapter
	zr      io.ReadCloser
}

// NewPoolReader constructs a PoolReader over the raw (still-encoded) pool
// file content.
func NewPoolReader(r io.Reader) (*PoolReader, error) {
	adapter := newRewriteAdapter(r)
	pr := &PoolReader{adapter: adapter}
	zr, err := zlib.NewReader(adapter)
	switch err {
	case nil:
		pr.zr = zr
	case io.EOF, io.ErrUnexpectedEOF:
		// A frame whose first byte is 0xb3 produces zero bytes and
		// terminates immediately; treat the stream as empty.
		pr.zr = nil
	default:
		return nil, err
	}
	return pr, nil
}

func (p *PoolReader) readSome(buf []byte) (int, error) {
	for {
		if p.zr == nil {
			return 0, io.EOF
		}
		n, err := p.zr.Read(buf)
		if n != 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		// Clean end of the current frame with nothing produced: see if
		// another frame follows.
		p.zr.Close()
		p.zr = nil
		if !p.adapter.hasMore() {
			return 0, io.EOF
		}
		p.adapter.reset()
		zr, zerr := zlib.NewReader(p.adapter)
		if zerr == io.EOF || zerr == io.ErrUnexpectedEOF {
			// The next frame starts with the 0xb3 end marker.
			return 0, io.EOF
		}
		if zerr != nil {
			return 0, zerr
		}
		p.zr = zr
	}
}

// Read fills buf, looping across frame boundaries until buf is full or the
// stream truly ends.
func (p *PoolReader) Read(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := p.readSome(buf[total:])
		total += n
		if n == 0 {
			if err == io.EOF {
				if total > 0 {
					return total, nil
				}
				return 0, io.EOF
			}
			return total, err
		}
	}
	return total, nil
}
