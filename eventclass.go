// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import "fmt"

// LogLevel mirrors the well-known CTF/LTTng log level scale. Unknown values
// outside this scale are preserved verbatim by EventClass's attribute bag
// rather than rejected.
type LogLevel int

// Well-known log levels.
const (
	LogLevelUnspecified LogLevel = iota
	LogLevelEmergency
	LogLevelAlert
	LogLevelCritical
	LogLevelError
	LogLevelWarning
	LogLevelNotice
	LogLevelInfo
	LogLevelDebug
)

// EventClass describes the schema of one kind of event within a stream: an
// optional per-event context field class and a payload field class, plus a
// small bag of known and unknown attributes round-tripped from whatever
// created it (for example id, name, loglevel and model.emf.uri, per CTF's
// metadata grammar).
type EventClass struct {
	rc *refCount

	id       int64
	hasID    bool
	name     string
	logLevel LogLevel
	hasLevel bool
	emfURI   string

	unknownAttrs map[string]any

	context *FieldClass
	payload *FieldClass

	frozen bool
}

// NewEventClass creates an unfrozen event class with the given name. name
// may be empty; CTF does not require event classes to be named.
func NewEventClass(name string) *EventClass {
	ec := &EventClass{name: name, unknownAttrs: make(map[string]any)}
	ec.rc = newRefCount(func() {})
	return ec
}

// Acquire increments the reference count.
func (ec *EventClass) Acquire() error {
	ec.rc.acquire()
	return nil
}

// Release decrements the reference count.
func (ec *EventClass) Release() {
	ec.rc.release()
}

// Name returns the event class's name.
func (ec *EventClass) Name() string { return ec.name }

func (ec *EventClass) checkMutable(what string) error {
	if ec.frozen {
		return newErr(KindFrozen, "cannot set %s on a frozen event class", what)
	}
	return nil
}

// SetID sets the event class's numeric identifier, unique within its stream
// class.
func (ec *EventClass) SetID(id int64) error {
	if err := ec.checkMutable("id"); err != nil {
		return err
	}
	ec.id = id
	ec.hasID = true
	return nil
}

// ID returns the event class's numeric identifier, or (0, false) if unset.
func (ec *EventClass) ID() (int64, bool) {
	if !ec.hasID {
		return 0, false
	}
	return ec.id, true
}

// SetLogLevel sets the event class's log level.
func (ec *EventClass) SetLogLevel(level LogLevel) error {
	if err := ec.checkMutable("loglevel"); err != nil {
		return err
	}
	ec.logLevel = level
	ec.hasLevel = true
	return nil
}

// LogLevel returns the event class's log level, or (LogLevelUnspecified,
// false) if unset.
func (ec *EventClass) LogLevel() (LogLevel, bool) {
	if !ec.hasLevel {
		return LogLevelUnspecified, false
	}
	return ec.logLevel, true
}

// SetEMFURI sets the event class's Eclipse Modeling Framework URI, used by
// some tracers to resolve an event to its model definition.
func (ec *EventClass) SetEMFURI(uri string) error {
	if err := ec.checkMutable("model.emf.uri"); err != nil {
		return err
	}
	ec.emfURI = uri
	return nil
}

// EMFURI returns the event class's model.emf.uri attribute, or "" if unset.
func (ec *EventClass) EMFURI() string { return ec.emfURI }

// SetUnknownAttribute records an attribute this module does not interpret,
// so that round-tripping the schema (e.g. through the JSON bridge) does not
// silently drop producer-supplied metadata.
func (ec *EventClass) SetUnknownAttribute(key string, value any) error {
	if err := ec.checkMutable("attribute " + key); err != nil {
		return err
	}
	ec.unknownAttrs[key] = value
	return nil
}

// UnknownAttribute returns an attribute this module does not interpret.
func (ec *EventClass) UnknownAttribute(key string) (any, bool) {
	v, ok := ec.unknownAttrs[key]
	return v, ok
}

// SetContextFieldClass sets the per-event context schema. It must be a
// struct field class, matching the Context/Payload distinction's
// Non-goal-excluded-nothing invariant that both scopes root at a struct.
func (ec *EventClass) SetContextFieldClass(fc *FieldClass) error {
	if err := ec.checkMutable("context field class"); err != nil {
		return err
	}
	if fc != nil && fc.Kind() != KindFCStruct {
		return newErr(KindBadType, "event context field class must be a struct, got %s", fc.Kind())
	}
	ec.context = fc
	return nil
}

// ContextFieldClass returns the per-event context schema, or nil.
func (ec *EventClass) ContextFieldClass() *FieldClass { return ec.context }

// SetPayloadFieldClass sets the event payload schema.
func (ec *EventClass) SetPayloadFieldClass(fc *FieldClass) error {
	if err := ec.checkMutable("payload field class"); err != nil {
		return err
	}
	if fc != nil && fc.Kind() != KindFCStruct {
		return newErr(KindBadType, "event payload field class must be a struct, got %s", fc.Kind())
	}
	ec.payload = fc
	return nil
}

// PayloadFieldClass returns the event payload schema, or nil.
func (ec *EventClass) PayloadFieldClass() *FieldClass { return ec.payload }

// IsFrozen reports whether this event class may still be mutated.
func (ec *EventClass) IsFrozen() bool { return ec.frozen }

// Freeze marks the event class, and its context/payload field classes,
// immutable. Idempotent. Called automatically once the event class is added
// to a stream class.
func (ec *EventClass) Freeze() {
	if ec.frozen {
		return
	}
	ec.frozen = true
	ec.context.Freeze()
	ec.payload.Freeze()
}

// String implements fmt.Stringer for debugging and log output.
func (ec *EventClass) String() string {
	if ec == nil {
		return "<nil event class>"
	}
	return fmt.Sprintf("EventClass{name=%q, frozen=%t}", ec.name, ec.frozen)
}
