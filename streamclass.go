// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import "fmt"

// StreamClass describes the schema shared by every stream (every captured
// binary substream) of one kind within a trace: the packet header, packet
// context, event header and stream-wide event context field classes, plus
// the event classes that may appear within its streams.
type StreamClass struct {
	rc *refCount

	id    int64
	hasID bool
	name  string

	packetContext      *FieldClass
	eventHeader        *FieldClass
	streamEventContext *FieldClass

	defaultClockClass             *ClockClass
	defaultClockClassAlwaysKnown  bool
	assignsAutomaticEventClassIDs bool
	assignsAutomaticStreamIDs     bool

	eventClasses      []*EventClass
	eventClassByID    map[int64]*EventClass
	nextAutoID        int64
	addedToTrace      bool

	frozen bool
}

// NewStreamClass creates an unfrozen stream class. By default it assigns
// automatic, sequential IDs to event classes as they are added, matching the
// common case where a tracer never assigns its own IDs.
func NewStreamClass() *StreamClass {
	sc := &StreamClass{
		eventClassByID:                 make(map[int64]*EventClass),
		assignsAutomaticEventClassIDs:  true,
		assignsAutomaticStreamIDs:      true,
		defaultClockClassAlwaysKnown:   true,
	}
	sc.rc = newRefCount(func() {})
	return sc
}

// Acquire increments the reference count.
func (sc *StreamClass) Acquire() error {
	sc.rc.acquire()
	return nil
}

// Release decrements the reference count.
func (sc *StreamClass) Release() {
	sc.rc.release()
}

func (sc *StreamClass) checkMutable(what string) error {
	if sc.frozen {
		return newErr(KindFrozen, "cannot set %s on a frozen stream class", what)
	}
	return nil
}

// SetName sets the stream class's name.
func (sc *StreamClass) SetName(name string) error {
	if err := sc.checkMutable("name"); err != nil {
		return err
	}
	sc.name = name
	return nil
}

// Name returns the stream class's name.
func (sc *StreamClass) Name() string { return sc.name }

// SetID sets the stream class's numeric identifier.
func (sc *StreamClass) SetID(id int64) error {
	if err := sc.checkMutable("id"); err != nil {
		return err
	}
	sc.id = id
	sc.hasID = true
	return nil
}

// ID returns the stream class's numeric identifier, or (0, false) if unset.
func (sc *StreamClass) ID() (int64, bool) {
	if !sc.hasID {
		return 0, false
	}
	return sc.id, true
}

// SetPacketContextFieldClass sets the packet context schema, shared by every
// packet of every stream of this class.
func (sc *StreamClass) SetPacketContextFieldClass(fc *FieldClass) error {
	if err := sc.checkMutable("packet context field class"); err != nil {
		return err
	}
	if fc != nil && fc.Kind() != KindFCStruct {
		return newErr(KindBadType, "packet context field class must be a struct, got %s", fc.Kind())
	}
	sc.packetContext = fc
	return nil
}

// PacketContextFieldClass returns the packet context schema, or nil.
func (sc *StreamClass) PacketContextFieldClass() *FieldClass { return sc.packetContext }

// SetEventHeaderFieldClass sets the event header schema, present ahead of
// every event of every stream of this class.
func (sc *StreamClass) SetEventHeaderFieldClass(fc *FieldClass) error {
	if err := sc.checkMutable("event header field class"); err != nil {
		return err
	}
	if fc != nil && fc.Kind() != KindFCStruct {
		return newErr(KindBadType, "event header field class must be a struct, got %s", fc.Kind())
	}
	sc.eventHeader = fc
	return nil
}

// EventHeaderFieldClass returns the event header schema, or nil.
func (sc *StreamClass) EventHeaderFieldClass() *FieldClass { return sc.eventHeader }

// SetEventContextFieldClass sets the stream-wide per-event context schema,
// shared by every event class added to this stream class (distinct from an
// individual event class's own context field class).
func (sc *StreamClass) SetEventContextFieldClass(fc *FieldClass) error {
	if err := sc.checkMutable("stream event context field class"); err != nil {
		return err
	}
	if fc != nil && fc.Kind() != KindFCStruct {
		return newErr(KindBadType, "stream event context field class must be a struct, got %s", fc.Kind())
	}
	sc.streamEventContext = fc
	return nil
}

// EventContextFieldClass returns the stream-wide per-event context schema,
// or nil.
func (sc *StreamClass) EventContextFieldClass() *FieldClass { return sc.streamEventContext }

// SetDefaultClockClass sets the clock class new events of streams of this
// class are timestamped against absent an explicit per-event mapping.
func (sc *StreamClass) SetDefaultClockClass(cc *ClockClass) error {
	if err := sc.checkMutable("default clock class"); err != nil {
		return err
	}
	sc.defaultClockClass = cc
	return nil
}

// DefaultClockClass returns the stream class's default clock class, or nil.
func (sc *StreamClass) DefaultClockClass() *ClockClass { return sc.defaultClockClass }

// SetDefaultClockClassAlwaysKnown records whether every stream instantiated
// from this class is guaranteed to carry a default clock snapshot at packet
// boundaries. Supplements the stream class schema with a fact the original
// implementation tracks but the distilled field-class graph has no room for.
func (sc *StreamClass) SetDefaultClockClassAlwaysKnown(known bool) error {
	if err := sc.checkMutable("default_clock_class_always_known"); err != nil {
		return err
	}
	sc.defaultClockClassAlwaysKnown = known
	return nil
}

// DefaultClockClassAlwaysKnown reports whether a default clock snapshot is
// guaranteed present at packet boundaries.
func (sc *StreamClass) DefaultClockClassAlwaysKnown() bool { return sc.defaultClockClassAlwaysKnown }

// SetAssignsAutomaticEventClassIDs toggles automatic sequential ID
// assignment for event classes added without an explicit SetID call.
func (sc *StreamClass) SetAssignsAutomaticEventClassIDs(auto bool) error {
	if err := sc.checkMutable("assigns_automatic_event_class_ids"); err != nil {
		return err
	}
	sc.assignsAutomaticEventClassIDs = auto
	return nil
}

// AddEventClass appends ec to the stream class: it validates ec's context
// and payload field classes against the stream class's (and trace's) scope
// graph via ValidateEventScopes, assigns an automatic ID if ec has none and
// automatic assignment is enabled, checks ID uniqueness, then freezes ec.
// On any failure ec and sc are left unmodified.
func (sc *StreamClass) AddEventClass(trace *Trace, ec *EventClass) error {
	if ec == nil {
		return newErr(KindInvalidArgument, "event class must not be nil")
	}
	if sc.eventHeader == nil {
		return newErr(KindValidationFailed, "stream class has no event header field class to discriminate events")
	}
	if ec.payload == nil || ec.payload.FieldCount() == 0 {
		return newErr(KindValidationFailed, "event class must have a non-empty payload field class")
	}

	id, hasID := ec.ID()
	if !hasID {
		if !sc.assignsAutomaticEventClassIDs {
			return newErr(KindInvalidArgument, "event class has no id and automatic assignment is disabled")
		}
		id = sc.nextAutoID
	}
	if _, exists := sc.eventClassByID[id]; exists {
		return newErr(KindDuplicate, "event class id %d already present in stream class", id)
	}

	if err := ValidateEventScopes(trace, sc, ec); err != nil {
		return err
	}

	if !hasID {
		if err := ec.SetID(id); err != nil {
			return err
		}
	}
	ec.Freeze()

	sc.eventClasses = append(sc.eventClasses, ec)
	sc.eventClassByID[id] = ec
	if id >= sc.nextAutoID {
		sc.nextAutoID = id + 1
	}
	return nil
}

// EventClassCount returns the number of event classes in this stream class.
func (sc *StreamClass) EventClassCount() int { return len(sc.eventClasses) }

// EventClassByIndex returns the i'th event class added to this stream class,
// in insertion order.
func (sc *StreamClass) EventClassByIndex(i int) (*EventClass, error) {
	if i < 0 || i >= len(sc.eventClasses) {
		return nil, newErr(KindNotFound, "event class index %d out of range", i)
	}
	return sc.eventClasses[i], nil
}

// EventClassByID returns the event class with the given numeric ID, or nil.
func (sc *StreamClass) EventClassByID(id int64) *EventClass {
	return sc.eventClassByID[id]
}

// IsFrozen reports whether this stream class may still be mutated.
func (sc *StreamClass) IsFrozen() bool { return sc.frozen }

// Freeze marks the stream class, and its packet context, event header and
// stream event context field classes, immutable. Idempotent. Individual
// event classes freeze independently as they are added. Called automatically
// once the stream class is added to a trace.
func (sc *StreamClass) Freeze() {
	if sc.frozen {
		return
	}
	sc.frozen = true
	sc.packetContext.Freeze()
	sc.eventHeader.Freeze()
	sc.streamEventContext.Freeze()
}

// String implements fmt.Stringer for debugging and log output.
func (sc *StreamClass) String() string {
	if sc == nil {
		return "<nil stream class>"
	}
	return fmt.Sprintf("StreamClass{name=%q, events=%d, frozen=%t}", sc.name, len(sc.eventClasses), sc.frozen)
}
