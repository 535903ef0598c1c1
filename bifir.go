// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import "github.com/go-kratos/kratos/v2/log"

// BIFIRState names where a BinaryFilePacketReader sits in its packet/event
// traversal. State transitions only ever move forward through this list,
// wrapping from EventPayload back to EventHeader until the packet's content
// size is exhausted, at which point PacketEnd is reached.
type BIFIRState int

// Binary file/packet reader states.
const (
	BIFIRStateInit BIFIRState = iota
	BIFIRStatePacketHeader
	BIFIRStatePacketContext
	BIFIRStateEventHeader
	BIFIRStateEventStreamContext
	BIFIRStateEventContext
	BIFIRStateEventPayload
	BIFIRStatePacketEnd
)

// BinaryFilePacketReader decodes one CTF binary stream packet-by-packet,
// event-by-event, against a trace's resolved schema. It owns a
// BinaryTypeReader per scope and exposes a resumable GetHeader / GetContext /
// GetNextEvent / GotoNextPacket API matching the BTR's Again contract: any
// call may return KindDecodeAgain, in which case the caller retries the same
// call once the medium has more data.
type BinaryFilePacketReader struct {
	trace  *Trace
	medium Medium
	cb     *BTRCallbacks

	state BIFIRState
	sc    *StreamClass
	ec    *EventClass

	packetHeader  *FieldValue
	packetContext *FieldValue
	eventHeader   *FieldValue
	streamContext *FieldValue
	eventContext  *FieldValue
	eventPayload  *FieldValue

	inflight   *BinaryTypeReader
	inflightFC *FieldClass

	eventsDecoded      uint64
	packetContentBits  uint64
	packetBitsConsumed uint64

	logger *log.Helper
}

// NewBinaryFilePacketReader creates a reader for trace's schema, pulling
// bytes from medium and notifying cb as fields decode. Decode failures are
// logged at warning level through a default stdout logger; use
// SetLogger to redirect or silence them.
func NewBinaryFilePacketReader(trace *Trace, medium Medium, cb *BTRCallbacks) *BinaryFilePacketReader {
	return &BinaryFilePacketReader{trace: trace, medium: medium, cb: cb, state: BIFIRStateInit, logger: defaultLogger()}
}

// SetLogger overrides the reader's logger.
func (b *BinaryFilePacketReader) SetLogger(l log.Logger) {
	b.logger = newLogHelper(l)
}

// State returns the reader's current position in the packet/event state
// machine.
func (b *BinaryFilePacketReader) State() BIFIRState { return b.state }

// resume drives fc/dst to completion (or Again/error) through a single
// possibly-multi-call BinaryTypeReader, remembering in-flight state across
// calls so a caller retrying after KindDecodeAgain resumes exactly where
// decoding paused rather than restarting the field.
func (b *BinaryFilePacketReader) resume(fc *FieldClass, dst **FieldValue) error {
	if fc == nil {
		*dst = nil
		return nil
	}
	if b.inflight == nil {
		b.inflight = NewBinaryTypeReader(b.medium, b.cb)
		b.inflightFC = fc
		fv, status := b.inflight.DecodeField(fc)
		return b.translateStatus(status, fv, dst)
	}
	status := b.inflight.Continue()
	return b.translateStatus(status, b.inflight.root, dst)
}

func (b *BinaryFilePacketReader) translateStatus(status BTRStatus, fv *FieldValue, dst **FieldValue) error {
	switch status {
	case BTRStatusOK:
		*dst = fv
		b.packetBitsConsumed += 8 * b.inflight.ConsumedBytes()
		b.inflight = nil
		b.inflightFC = nil
		return nil
	case BTRStatusAgain:
		return newErr(KindDecodeAgain, "waiting for more data from medium")
	case BTRStatusEOF:
		b.inflight = nil
		b.logger.Warnf("medium reached end of stream while decoding %s", b.inflightFC.Kind())
		return newErr(KindDecodeEOF, "medium reached end of stream mid-field")
	case BTRStatusInvalid:
		b.inflight = nil
		b.logger.Warnf("field content violates its field class while decoding %s", b.inflightFC.Kind())
		return newErr(KindDecodeInvalid, "field content violates its field class")
	default:
		b.inflight = nil
		b.logger.Warnf("binary type reader failed while decoding %s", b.inflightFC.Kind())
		return newErr(KindDecodeError, "binary type reader failed")
	}
}

// GetHeader decodes the packet header (if the trace has one) followed by the
// packet context (if the stream class identified by the header has one),
// advancing state from Init through PacketContext to EventHeader.
func (b *BinaryFilePacketReader) GetHeader() error {
	if b.state == BIFIRStateInit {
		if err := b.resume(b.trace.PacketHeaderFieldClass(), &b.packetHeader); err != nil {
			return err
		}
		b.state = BIFIRStatePacketHeader
		if err := b.selectStreamClassFromHeader(); err != nil {
			return err
		}
	}
	if b.state == BIFIRStatePacketHeader {
		if err := b.resume(b.sc.PacketContextFieldClass(), &b.packetContext); err != nil {
			return err
		}
		b.state = BIFIRStateEventHeader
		b.packetContentBits = b.resolvePacketContentSize()
	}
	return nil
}

// selectStreamClassFromHeader reads the stream_id field from the decoded
// packet header, if present, and binds the reader to that stream class. A
// trace with exactly one stream class needs no stream_id field at all.
func (b *BinaryFilePacketReader) selectStreamClassFromHeader() error {
	if b.packetHeader != nil {
		if sidFV, err := b.packetHeader.GetFieldByName("stream_id"); err == nil {
			sid, err := sidFV.Unsigned()
			if err != nil {
				return newErr(KindDecodeInvalid, "stream_id field is not an integer")
			}
			sc := b.trace.StreamClassByID(int64(sid))
			if sc == nil {
				return newErr(KindDecodeInvalid, "packet header references unknown stream class id %d", sid)
			}
			b.sc = sc
			return nil
		}
	}
	if b.trace.StreamClassCount() != 1 {
		return newErr(KindDecodeInvalid, "cannot disambiguate stream class without a stream_id field in the packet header")
	}
	sc, err := b.trace.StreamClassByIndex(0)
	if err != nil {
		return err
	}
	b.sc = sc
	return nil
}

// resolvePacketContentSize reads the well-known content_size field of the
// packet context, if present, else falls back to packet_size, else leaves
// the packet open-ended (consumed until the medium reports end of stream).
func (b *BinaryFilePacketReader) resolvePacketContentSize() uint64 {
	if b.packetContext == nil {
		return 0
	}
	for _, name := range []string{"content_size", "packet_size"} {
		if fv, err := b.packetContext.GetFieldByName(name); err == nil {
			if v, err := fv.Unsigned(); err == nil {
				return v
			}
		}
	}
	return 0
}

// GetContext decodes the stream class's event header, the stream-wide
// per-event context, and the selected event class's own per-event context,
// advancing state to EventPayload.
func (b *BinaryFilePacketReader) GetContext() error {
	if b.state == BIFIRStateEventHeader {
		if err := b.resume(b.sc.EventHeaderFieldClass(), &b.eventHeader); err != nil {
			return err
		}
		b.state = BIFIRStateEventStreamContext
		if err := b.selectEventClassFromHeader(); err != nil {
			return err
		}
	}
	if b.state == BIFIRStateEventStreamContext {
		if err := b.resume(b.sc.EventContextFieldClass(), &b.streamContext); err != nil {
			return err
		}
		b.state = BIFIRStateEventContext
	}
	if b.state == BIFIRStateEventContext {
		var ecFC *FieldClass
		if b.ec != nil {
			ecFC = b.ec.ContextFieldClass()
		}
		if err := b.resume(ecFC, &b.eventContext); err != nil {
			return err
		}
		b.state = BIFIRStateEventPayload
	}
	return nil
}

func (b *BinaryFilePacketReader) selectEventClassFromHeader() error {
	if b.eventHeader != nil {
		if idFV, err := b.eventHeader.GetFieldByName("id"); err == nil {
			id, err := idFV.Unsigned()
			if err != nil {
				return newErr(KindDecodeInvalid, "event header id field is not an integer")
			}
			ec := b.sc.EventClassByID(int64(id))
			if ec == nil {
				return newErr(KindDecodeInvalid, "event header references unknown event class id %d", id)
			}
			b.ec = ec
			return nil
		}
	}
	if b.sc.EventClassCount() != 1 {
		return newErr(KindDecodeInvalid, "cannot disambiguate event class without an id field in the event header")
	}
	ec, err := b.sc.EventClassByIndex(0)
	if err != nil {
		return err
	}
	b.ec = ec
	return nil
}

// GetNextEvent decodes the selected event class's payload and returns it,
// looping state back to EventHeader for the next event within the current
// packet, or advancing to PacketEnd once the packet's declared content size
// has been consumed.
func (b *BinaryFilePacketReader) GetNextEvent() (*FieldValue, error) {
	if b.state == BIFIRStatePacketEnd {
		return nil, newErr(KindDecodeNoEnt, "packet content exhausted, no more events in this packet")
	}
	if b.state != BIFIRStateEventPayload {
		return nil, newErr(KindInvalidArgument, "get_next_event called outside the event payload state")
	}
	var payloadFC *FieldClass
	if b.ec != nil {
		payloadFC = b.ec.PayloadFieldClass()
	}
	if err := b.resume(payloadFC, &b.eventPayload); err != nil {
		return nil, err
	}
	b.eventsDecoded++
	if b.packetContentBits > 0 && b.packetBitsConsumed >= b.packetContentBits {
		b.state = BIFIRStatePacketEnd
	} else {
		b.state = BIFIRStateEventHeader
	}
	return b.eventPayload, nil
}

// GotoNextPacket resets the reader to decode a fresh packet header,
// discarding any in-flight partial decode. Callers typically combine this
// with a Medium-specific Seek to skip the remainder of the current packet
// rather than decoding every event in it.
func (b *BinaryFilePacketReader) GotoNextPacket() {
	b.state = BIFIRStateInit
	b.inflight = nil
	b.inflightFC = nil
	b.packetHeader = nil
	b.packetContext = nil
	b.eventHeader = nil
	b.streamContext = nil
	b.eventContext = nil
	b.eventPayload = nil
	b.sc = nil
	b.ec = nil
	b.packetContentBits = 0
	b.packetBitsConsumed = 0
}

// Reset returns the reader fully to its initial state, as if newly created
// against the same medium.
func (b *BinaryFilePacketReader) Reset() {
	b.GotoNextPacket()
	b.eventsDecoded = 0
	b.packetContentBits = 0
	b.packetBitsConsumed = 0
}

// CurrentStreamClass returns the stream class selected from the most
// recently decoded packet header, or nil before GetHeader succeeds.
func (b *BinaryFilePacketReader) CurrentStreamClass() *StreamClass { return b.sc }

// CurrentEventClass returns the event class selected from the most recently
// decoded event header, or nil before GetContext succeeds.
func (b *BinaryFilePacketReader) CurrentEventClass() *EventClass { return b.ec }

// PacketHeader returns the most recently decoded packet header field value.
func (b *BinaryFilePacketReader) PacketHeader() *FieldValue { return b.packetHeader }

// PacketContext returns the most recently decoded packet context field
// value.
func (b *BinaryFilePacketReader) PacketContext() *FieldValue { return b.packetContext }

// EventsDecoded returns the number of events successfully decoded so far
// across the lifetime of this reader.
func (b *BinaryFilePacketReader) EventsDecoded() uint64 { return b.eventsDecoded }
