// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

// fuzzTrace builds a small but representative trace schema once: a packet
// header with a magic number and stream id, a packet context with a content
// size, and a single stream class with one event class carrying an integer,
// a string and a length-prefixed sequence of bytes. This exercises the
// struct, integer, string and sequence paths of BinaryTypeReader (not float,
// enumeration, array or variant) without needing the fuzzer to discover a
// schema on its own.
func fuzzTrace() (*Trace, error) {
	trace := NewTrace("fuzz")

	magic, err := NewIntegerFieldClass(32, false, BaseHexadecimal, EncodingNone, ByteOrderBigEndian)
	if err != nil {
		return nil, err
	}
	streamID, err := NewIntegerFieldClass(64, false, BaseDecimal, EncodingNone, ByteOrderLittleEndian)
	if err != nil {
		return nil, err
	}
	packetHeader, err := NewStructFieldClass(8)
	if err != nil {
		return nil, err
	}
	if err := packetHeader.AddField("magic", magic); err != nil {
		return nil, err
	}
	if err := packetHeader.AddField("stream_id", streamID); err != nil {
		return nil, err
	}
	if err := trace.SetPacketHeaderFieldClass(packetHeader); err != nil {
		return nil, err
	}

	contentSize, err := NewIntegerFieldClass(64, false, BaseDecimal, EncodingNone, ByteOrderLittleEndian)
	if err != nil {
		return nil, err
	}
	packetContext, err := NewStructFieldClass(8)
	if err != nil {
		return nil, err
	}
	if err := packetContext.AddField("content_size", contentSize); err != nil {
		return nil, err
	}

	eventID, err := NewIntegerFieldClass(8, false, BaseDecimal, EncodingNone, ByteOrderLittleEndian)
	if err != nil {
		return nil, err
	}
	eventHeader, err := NewStructFieldClass(8)
	if err != nil {
		return nil, err
	}
	if err := eventHeader.AddField("id", eventID); err != nil {
		return nil, err
	}

	sc := NewStreamClass()
	if err := sc.SetPacketContextFieldClass(packetContext); err != nil {
		return nil, err
	}
	if err := sc.SetEventHeaderFieldClass(eventHeader); err != nil {
		return nil, err
	}
	if err := trace.AddStreamClass(sc); err != nil {
		return nil, err
	}

	count, err := NewIntegerFieldClass(16, false, BaseDecimal, EncodingNone, ByteOrderLittleEndian)
	if err != nil {
		return nil, err
	}
	payloadByte, err := NewIntegerFieldClass(8, false, BaseDecimal, EncodingNone, ByteOrderLittleEndian)
	if err != nil {
		return nil, err
	}
	bytesSeq, err := NewSequenceFieldClass("count", payloadByte)
	if err != nil {
		return nil, err
	}
	name, err := NewStringFieldClass(EncodingUTF8)
	if err != nil {
		return nil, err
	}
	payload, err := NewStructFieldClass(8)
	if err != nil {
		return nil, err
	}
	if err := payload.AddField("count", count); err != nil {
		return nil, err
	}
	if err := payload.AddField("name", name); err != nil {
		return nil, err
	}
	if err := payload.AddField("data", bytesSeq); err != nil {
		return nil, err
	}

	ec := NewEventClass("sample")
	if err := ec.SetPayloadFieldClass(payload); err != nil {
		return nil, err
	}
	if err := sc.AddEventClass(trace, ec); err != nil {
		return nil, err
	}

	return trace, nil
}

// Fuzz follows the conventional go-fuzz entry point contract: return 1 when
// data was interesting (here: decoded a complete packet header, context,
// event header and at least one event payload without error), 0 otherwise.
func Fuzz(data []byte) int {
	trace, err := fuzzTrace()
	if err != nil {
		return 0
	}
	medium := NewByteSliceMedium(data)
	reader := NewBinaryFilePacketReader(trace, medium, &BTRCallbacks{})

	if err := reader.GetHeader(); err != nil {
		return 0
	}
	if err := reader.GetContext(); err != nil {
		return 0
	}
	if _, err := reader.GetNextEvent(); err != nil {
		return 0
	}
	return 1
}
