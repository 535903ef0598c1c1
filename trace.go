// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import "fmt"

// Trace is the root of one IR graph: the packet header schema shared by
// every stream of the trace, the trace's environment (used by the resolver
// to satisfy env. references), its registered clock classes, and the stream
// classes that describe the streams it may contain.
type Trace struct {
	rc *refCount

	name string
	uuid string

	environment map[string]any

	packetHeader          *FieldClass
	packetHeaderValidated bool

	clockClasses   []*ClockClass
	clockClassByName map[string]*ClockClass

	streamClasses   []*StreamClass
	streamClassByID map[int64]*StreamClass
	nextAutoID      int64

	unknownAttrs map[string]any

	frozen bool
}

// NewTrace creates an empty, unfrozen trace.
func NewTrace(name string) *Trace {
	t := &Trace{
		name:             name,
		environment:      make(map[string]any),
		clockClassByName: make(map[string]*ClockClass),
		streamClassByID:  make(map[int64]*StreamClass),
		unknownAttrs:     make(map[string]any),
	}
	t.rc = newRefCount(func() {})
	return t
}

// Acquire increments the reference count.
func (t *Trace) Acquire() error {
	t.rc.acquire()
	return nil
}

// Release decrements the reference count.
func (t *Trace) Release() {
	t.rc.release()
}

func (t *Trace) checkMutable(what string) error {
	if t.frozen {
		return newErr(KindFrozen, "cannot set %s on a frozen trace", what)
	}
	return nil
}

// Name returns the trace's name.
func (t *Trace) Name() string { return t.name }

// SetUUID sets the trace's UUID.
func (t *Trace) SetUUID(uuid string) error {
	if err := t.checkMutable("uuid"); err != nil {
		return err
	}
	t.uuid = uuid
	return nil
}

// UUID returns the trace's UUID, or "" if unset.
func (t *Trace) UUID() string { return t.uuid }

// SetEnvironmentEntry records one key in the trace environment, readable by
// the field-path resolver via env. references and by consumers inspecting
// trace-wide metadata (hostname, tracer version, domain, and so on).
func (t *Trace) SetEnvironmentEntry(key string, value any) error {
	if err := t.checkMutable("environment entry " + key); err != nil {
		return err
	}
	t.environment[key] = value
	return nil
}

// EnvironmentEntry returns one trace environment value.
func (t *Trace) EnvironmentEntry(key string) (any, bool) {
	v, ok := t.environment[key]
	return v, ok
}

// SetUnknownAttribute records a trace-level attribute this module does not
// interpret, so a full metadata round trip does not lose producer-supplied
// fields outside the documented schema.
func (t *Trace) SetUnknownAttribute(key string, value any) error {
	if err := t.checkMutable("attribute " + key); err != nil {
		return err
	}
	t.unknownAttrs[key] = value
	return nil
}

// UnknownAttribute returns a trace-level attribute this module does not
// interpret.
func (t *Trace) UnknownAttribute(key string) (any, bool) {
	v, ok := t.unknownAttrs[key]
	return v, ok
}

// SetPacketHeaderFieldClass sets the packet header schema shared by every
// stream of the trace. It is validated lazily, the first time a stream class
// is added to the trace (ValidateStreamScopes), not on this call.
func (t *Trace) SetPacketHeaderFieldClass(fc *FieldClass) error {
	if err := t.checkMutable("packet header field class"); err != nil {
		return err
	}
	if fc != nil && fc.Kind() != KindFCStruct {
		return newErr(KindBadType, "packet header field class must be a struct, got %s", fc.Kind())
	}
	t.packetHeader = fc
	t.packetHeaderValidated = false
	return nil
}

// PacketHeaderFieldClass returns the packet header schema, or nil.
func (t *Trace) PacketHeaderFieldClass() *FieldClass { return t.packetHeader }

// AddClockClass registers a clock class with the trace so it can be shared
// across several stream classes. Names must be unique within a trace.
func (t *Trace) AddClockClass(cc *ClockClass) error {
	if cc == nil {
		return newErr(KindInvalidArgument, "clock class must not be nil")
	}
	if _, exists := t.clockClassByName[cc.Name()]; exists {
		return newErr(KindDuplicate, "clock class %q already registered on trace", cc.Name())
	}
	t.clockClasses = append(t.clockClasses, cc)
	t.clockClassByName[cc.Name()] = cc
	return nil
}

// ClockClassByName returns a registered clock class by name, or nil.
func (t *Trace) ClockClassByName(name string) *ClockClass { return t.clockClassByName[name] }

// ClockClassCount returns the number of clock classes registered on the
// trace.
func (t *Trace) ClockClassCount() int { return len(t.clockClasses) }

// ClockClassByIndex returns the i'th registered clock class, in registration
// order.
func (t *Trace) ClockClassByIndex(i int) (*ClockClass, error) {
	if i < 0 || i >= len(t.clockClasses) {
		return nil, newErr(KindNotFound, "clock class index %d out of range", i)
	}
	return t.clockClasses[i], nil
}

// AddStreamClass appends sc to the trace: it validates sc's packet context,
// event header and stream event context field classes (and, the first time,
// the trace's own packet header) against the scope graph via
// ValidateStreamScopes, assigns an automatic ID if sc has none, checks ID
// uniqueness, then freezes sc (and the trace's packet header, if this was
// its first validation). On any failure sc and the trace are left
// unmodified.
func (t *Trace) AddStreamClass(sc *StreamClass) error {
	if sc == nil {
		return newErr(KindInvalidArgument, "stream class must not be nil")
	}

	id, hasID := sc.ID()
	if !hasID {
		if !sc.assignsAutomaticStreamIDs {
			return newErr(KindInvalidArgument, "stream class has no id and automatic assignment is disabled")
		}
		id = t.nextAutoID
	}
	if _, exists := t.streamClassByID[id]; exists {
		return newErr(KindDuplicate, "stream class id %d already present in trace", id)
	}

	if err := ValidateStreamScopes(t, sc); err != nil {
		return err
	}

	if !hasID {
		if err := sc.SetID(id); err != nil {
			return err
		}
	}
	sc.addedToTrace = true
	sc.Freeze()
	if t.packetHeaderValidated {
		t.packetHeader.Freeze()
	}
	t.frozen = true

	t.streamClasses = append(t.streamClasses, sc)
	t.streamClassByID[id] = sc
	if id >= t.nextAutoID {
		t.nextAutoID = id + 1
	}
	return nil
}

// StreamClassCount returns the number of stream classes in the trace.
func (t *Trace) StreamClassCount() int { return len(t.streamClasses) }

// StreamClassByIndex returns the i'th stream class added to the trace, in
// insertion order.
func (t *Trace) StreamClassByIndex(i int) (*StreamClass, error) {
	if i < 0 || i >= len(t.streamClasses) {
		return nil, newErr(KindNotFound, "stream class index %d out of range", i)
	}
	return t.streamClasses[i], nil
}

// StreamClassByID returns the stream class with the given numeric ID, or
// nil.
func (t *Trace) StreamClassByID(id int64) *StreamClass { return t.streamClassByID[id] }

// IsFrozen reports whether the trace has been sealed by its first
// AddStreamClass call. Once frozen, every trace-level setter (UUID,
// environment entries, unknown attributes, packet header field class) fails
// with ErrFrozen.
func (t *Trace) IsFrozen() bool { return t.frozen }

// String implements fmt.Stringer for debugging and log output.
func (t *Trace) String() string {
	if t == nil {
		return "<nil trace>"
	}
	return fmt.Sprintf("Trace{name=%q, streams=%d}", t.name, len(t.streamClasses))
}
