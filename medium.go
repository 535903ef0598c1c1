// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MediumStatus reports the outcome of a Medium.RequestBytes call.
type MediumStatus int

// Medium statuses.
const (
	MediumStatusOK MediumStatus = iota
	MediumStatusAgain
	MediumStatusEOF
	MediumStatusError
)

// Medium abstracts the byte source a binary file/packet reader (BIFIR) pulls
// from, mirroring the request_bytes(request_sz) -> (buf, buf_sz, status)
// contract: implementations may return fewer bytes than requested (signaling
// MediumStatusAgain for a caller willing to retry once more is available),
// fewer-than-requested-but-final bytes alongside MediumStatusEOF, or fail
// outright with MediumStatusError.
type Medium interface {
	RequestBytes(requestSize int) (buf []byte, status MediumStatus)
}

// ByteSliceMedium serves bytes from an in-memory slice, never returning
// MediumStatusAgain: the whole buffer is already resident, so a short read
// can only mean end of data.
type ByteSliceMedium struct {
	data   []byte
	offset int
}

// NewByteSliceMedium wraps data for sequential consumption by a BIFIR.
func NewByteSliceMedium(data []byte) *ByteSliceMedium {
	return &ByteSliceMedium{data: data}
}

// RequestBytes implements Medium.
func (m *ByteSliceMedium) RequestBytes(requestSize int) ([]byte, MediumStatus) {
	if requestSize < 0 {
		return nil, MediumStatusError
	}
	remaining := len(m.data) - m.offset
	if remaining <= 0 {
		return nil, MediumStatusEOF
	}
	n := requestSize
	if n > remaining {
		n = remaining
	}
	buf := m.data[m.offset : m.offset+n]
	m.offset += n
	if n < requestSize {
		return buf, MediumStatusEOF
	}
	return buf, MediumStatusOK
}

// Seek repositions the medium's read cursor, letting a caller jump directly
// to a packet's byte offset without replaying every event between. Nothing
// in this package calls it; GotoNextPacket leaves the position unchanged.
func (m *ByteSliceMedium) Seek(offset int) error {
	if offset < 0 || offset > len(m.data) {
		return newErr(KindInvalidArgument, "seek offset %d out of range", offset)
	}
	m.offset = offset
	return nil
}

// MmapMedium serves bytes from a memory-mapped trace packet file, avoiding a
// full read into the process's heap for traces that may be gigabytes large.
type MmapMedium struct {
	file *os.File
	mm   mmap.MMap
	off  int
}

// NewMmapMedium opens path read-only and maps it into memory.
func NewMmapMedium(path string) (*MmapMedium, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newErr(KindMediumError, "open %q: %v", path, err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, newErr(KindMediumError, "mmap %q: %v", path, err)
	}
	return &MmapMedium{file: f, mm: m}, nil
}

// RequestBytes implements Medium.
func (m *MmapMedium) RequestBytes(requestSize int) ([]byte, MediumStatus) {
	if requestSize < 0 {
		return nil, MediumStatusError
	}
	remaining := len(m.mm) - m.off
	if remaining <= 0 {
		return nil, MediumStatusEOF
	}
	n := requestSize
	if n > remaining {
		n = remaining
	}
	buf := m.mm[m.off : m.off+n]
	m.off += n
	if n < requestSize {
		return buf, MediumStatusEOF
	}
	return buf, MediumStatusOK
}

// Seek repositions the medium's read cursor.
func (m *MmapMedium) Seek(offset int) error {
	if offset < 0 || offset > len(m.mm) {
		return newErr(KindInvalidArgument, "seek offset %d out of range", offset)
	}
	m.off = offset
	return nil
}

// Close unmaps the file and closes its descriptor.
func (m *MmapMedium) Close() error {
	if err := m.mm.Unmap(); err != nil {
		return err
	}
	return m.file.Close()
}

// ReaderMedium adapts an io.Reader (e.g. a network socket or pipe) to
// Medium, returning MediumStatusAgain on a reader that legitimately produced
// zero bytes without reaching end of stream.
type ReaderMedium struct {
	r io.Reader
}

// NewReaderMedium wraps r for sequential consumption by a BIFIR.
func NewReaderMedium(r io.Reader) *ReaderMedium {
	return &ReaderMedium{r: r}
}

// RequestBytes implements Medium.
func (m *ReaderMedium) RequestBytes(requestSize int) ([]byte, MediumStatus) {
	if requestSize <= 0 {
		return nil, MediumStatusError
	}
	buf := make([]byte, requestSize)
	n, err := m.r.Read(buf)
	switch {
	case err == io.EOF && n == 0:
		return nil, MediumStatusEOF
	case err == io.EOF:
		return buf[:n], MediumStatusEOF
	case err != nil:
		return nil, MediumStatusError
	case n == 0:
		return nil, MediumStatusAgain
	case n < requestSize:
		return buf[:n], MediumStatusAgain
	default:
		return buf, MediumStatusOK
	}
}
