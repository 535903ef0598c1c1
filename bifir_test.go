// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// packetBytes assembles one fuzzTrace-shaped packet: a 4-byte big-endian
// magic, an 8-byte little-endian stream id (must be 0, the schema's sole
// stream class), an 8-byte little-endian content size, a 1-byte event id
// (must be 0, the schema's sole event class), a 2-byte little-endian
// sequence count, a NUL-terminated name and that many data bytes.
func packetBytes(name string, data []byte) []byte {
	b := []byte{0xDE, 0xAD, 0xBE, 0xEF} // magic
	b = append(b, make([]byte, 8)...)   // stream_id = 0
	b = append(b, make([]byte, 8)...)   // content_size = 0
	b = append(b, 0)                    // event id = 0
	count := len(data)
	b = append(b, byte(count), byte(count>>8)) // count, LE
	b = append(b, []byte(name)...)
	b = append(b, 0) // NUL terminator
	b = append(b, data...)
	return b
}

func TestBinaryFilePacketReaderDecodesOnePacketEndToEnd(t *testing.T) {
	trace, err := fuzzTrace()
	require.NoError(t, err)

	data := packetBytes("hi", []byte{0xAA, 0xBB})
	reader := NewBinaryFilePacketReader(trace, NewByteSliceMedium(data), &BTRCallbacks{})

	require.NoError(t, reader.GetHeader())
	assert.Equal(t, BIFIRStateEventHeader, reader.State())
	assert.NotNil(t, reader.CurrentStreamClass())

	require.NoError(t, reader.GetContext())
	assert.Equal(t, BIFIRStateEventPayload, reader.State())
	assert.NotNil(t, reader.CurrentEventClass())

	payload, err := reader.GetNextEvent()
	require.NoError(t, err)
	assert.Equal(t, BIFIRStateEventHeader, reader.State(), "state loops back for the next event")
	assert.EqualValues(t, 1, reader.EventsDecoded())

	countFV, err := payload.GetFieldByName("count")
	require.NoError(t, err)
	count, err := countFV.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	nameFV, err := payload.GetFieldByName("name")
	require.NoError(t, err)
	assert.Equal(t, "hi", nameFV.String())

	dataFV, err := payload.GetFieldByName("data")
	require.NoError(t, err)
	n, ok := dataFV.Length()
	require.True(t, ok)
	assert.EqualValues(t, 2, n)
	e0, err := dataFV.GetElementByIndex(0)
	require.NoError(t, err)
	v, err := e0.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 0xAA, v)
}

func TestBinaryFilePacketReaderGotoNextPacketResetsForSecondPacket(t *testing.T) {
	trace, err := fuzzTrace()
	require.NoError(t, err)

	first := packetBytes("a", []byte{1})
	second := packetBytes("bb", []byte{2, 3})
	data := append(first, second...)

	reader := NewBinaryFilePacketReader(trace, NewByteSliceMedium(data), &BTRCallbacks{})

	require.NoError(t, reader.GetHeader())
	require.NoError(t, reader.GetContext())
	_, err = reader.GetNextEvent()
	require.NoError(t, err)

	reader.GotoNextPacket()
	assert.Equal(t, BIFIRStateInit, reader.State())
	assert.Nil(t, reader.CurrentStreamClass())

	require.NoError(t, reader.GetHeader())
	require.NoError(t, reader.GetContext())
	payload, err := reader.GetNextEvent()
	require.NoError(t, err)
	assert.EqualValues(t, 2, reader.EventsDecoded())

	nameFV, err := payload.GetFieldByName("name")
	require.NoError(t, err)
	assert.Equal(t, "bb", nameFV.String())
}

func TestBinaryFilePacketReaderTranslatesMediumEOFToDecodeEOF(t *testing.T) {
	trace, err := fuzzTrace()
	require.NoError(t, err)

	// Too short to hold even the packet header's magic field.
	reader := NewBinaryFilePacketReader(trace, NewByteSliceMedium([]byte{0x01, 0x02}), &BTRCallbacks{})
	err = reader.GetHeader()
	assert.ErrorIs(t, err, ErrDecodeEOF)
}

func TestGetNextEventOutsidePayloadStateIsRejected(t *testing.T) {
	trace, err := fuzzTrace()
	require.NoError(t, err)
	reader := NewBinaryFilePacketReader(trace, NewByteSliceMedium(nil), &BTRCallbacks{})
	_, err = reader.GetNextEvent()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetNextEventReturnsNoEntOncePacketContentExhausted(t *testing.T) {
	trace, err := fuzzTrace()
	require.NoError(t, err)

	// 24 bytes total (12 header + 8 context + 4 event), content_size is
	// expressed in bits, matching the well-known CTF packet context field.
	b := []byte{0xDE, 0xAD, 0xBE, 0xEF}     // magic
	b = append(b, make([]byte, 8)...)       // stream_id = 0
	b = append(b, 192, 0, 0, 0, 0, 0, 0, 0) // content_size = 192 bits = 24 bytes
	b = append(b, 0)                        // event id = 0
	b = append(b, 0, 0)                     // count = 0
	b = append(b, 0)                        // name: empty, NUL-terminated, no data bytes

	reader := NewBinaryFilePacketReader(trace, NewByteSliceMedium(b), &BTRCallbacks{})
	require.NoError(t, reader.GetHeader())
	require.NoError(t, reader.GetContext())

	_, err = reader.GetNextEvent()
	require.NoError(t, err)
	assert.Equal(t, BIFIRStatePacketEnd, reader.State())

	_, err = reader.GetNextEvent()
	assert.ErrorIs(t, err, ErrDecodeNoEnt)
}

func TestResetClearsEventCounterAndState(t *testing.T) {
	trace, err := fuzzTrace()
	require.NoError(t, err)
	data := packetBytes("x", nil)
	reader := NewBinaryFilePacketReader(trace, NewByteSliceMedium(data), &BTRCallbacks{})

	require.NoError(t, reader.GetHeader())
	require.NoError(t, reader.GetContext())
	_, err = reader.GetNextEvent()
	require.NoError(t, err)
	assert.EqualValues(t, 1, reader.EventsDecoded())

	reader.Reset()
	assert.Equal(t, BIFIRStateInit, reader.State())
	assert.EqualValues(t, 0, reader.EventsDecoded())
}
