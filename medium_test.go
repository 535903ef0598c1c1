// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSliceMediumServesExactAndShortFinalReads(t *testing.T) {
	m := NewByteSliceMedium([]byte{1, 2, 3, 4, 5})

	buf, status := m.RequestBytes(3)
	require.Equal(t, MediumStatusOK, status)
	assert.Equal(t, []byte{1, 2, 3}, buf)

	buf, status = m.RequestBytes(10)
	assert.Equal(t, MediumStatusEOF, status)
	assert.Equal(t, []byte{4, 5}, buf)

	_, status = m.RequestBytes(1)
	assert.Equal(t, MediumStatusEOF, status)
}

func TestByteSliceMediumRejectsNegativeRequest(t *testing.T) {
	m := NewByteSliceMedium([]byte{1})
	_, status := m.RequestBytes(-1)
	assert.Equal(t, MediumStatusError, status)
}

func TestByteSliceMediumSeekBounds(t *testing.T) {
	m := NewByteSliceMedium([]byte{1, 2, 3})
	require.NoError(t, m.Seek(2))
	buf, status := m.RequestBytes(1)
	require.Equal(t, MediumStatusOK, status)
	assert.Equal(t, []byte{3}, buf)

	assert.Error(t, m.Seek(-1))
	assert.Error(t, m.Seek(100))
}

// slowReader returns n bytes per Read call before eventually reaching EOF,
// simulating a socket that produces data incrementally.
type slowReader struct {
	chunks [][]byte
	i      int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.i >= len(r.chunks) {
		return 0, io.EOF
	}
	c := r.chunks[r.i]
	r.i++
	n := copy(p, c)
	return n, nil
}

func TestReaderMediumTranslatesPartialAndEOFReads(t *testing.T) {
	r := &slowReader{chunks: [][]byte{{1, 2}, {}, {3}}}
	m := NewReaderMedium(r)

	buf, status := m.RequestBytes(4)
	require.Equal(t, MediumStatusAgain, status)
	assert.Equal(t, []byte{1, 2}, buf)

	_, status = m.RequestBytes(4)
	assert.Equal(t, MediumStatusAgain, status, "a zero-byte, no-error read means try again")

	buf, status = m.RequestBytes(4)
	require.Equal(t, MediumStatusAgain, status)
	assert.Equal(t, []byte{3}, buf)

	_, status = m.RequestBytes(4)
	assert.Equal(t, MediumStatusEOF, status)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, assertErr }

var assertErr = io.ErrClosedPipe

func TestReaderMediumTranslatesErrors(t *testing.T) {
	m := NewReaderMedium(errReader{})
	_, status := m.RequestBytes(4)
	assert.Equal(t, MediumStatusError, status)
}

func TestReaderMediumRejectsNonPositiveRequest(t *testing.T) {
	m := NewReaderMedium(&slowReader{})
	_, status := m.RequestBytes(0)
	assert.Equal(t, MediumStatusError, status)
}
