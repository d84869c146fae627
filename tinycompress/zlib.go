// Package tinycompress writes zlib streams made of stored DEFLATE blocks. It
// needs no compression tables, so it fits firmware that only has to wrap a
// data dictionary in a format compress/zlib on the host can read.
package tinycompress

import (
	"hash/adler32"
	"io"
)

// maxStored is the largest payload of one stored block.
const maxStored = 0xFFFF

// Append appends data to dst as a complete zlib stream.
func Append(dst, data []byte) []byte {
	sum := adler32.Checksum(data)
	dst = append(dst, 0x78, 0x01)
	for {
		n := len(data)
		final := byte(1)
		if n > maxStored {
			n = maxStored
			final = 0
		}
		dst = append(dst, final, byte(n), byte(n>>8), ^byte(n), ^byte(n>>8))
		dst = append(dst, data[:n]...)
		data = data[n:]
		if final == 1 {
			break
		}
	}
	return append(dst, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

// Writer buffers everything written to it and emits the zlib stream on
// Close.
type Writer struct {
	w   io.Writer
	buf []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (z *Writer) Write(p []byte) (int, error) {
	z.buf = append(z.buf, p...)
	return len(p), nil
}

func (z *Writer) Close() error {
	_, err := z.w.Write(Append(make([]byte, 0, len(z.buf)+16), z.buf))
	return err
}
