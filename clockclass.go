// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import "fmt"

// ClockClass describes one hardware or software clock: its frequency,
// an offset from the Unix epoch, and metadata identifying the clock across
// traces. A ClockClass is not owned by any single trace object; several
// stream classes of the same trace may map integer field classes to it.
type ClockClass struct {
	rc *refCount

	name        string
	description string
	uuid        string
	frequency   uint64 // Hz, must be > 0
	precision   uint64 // cycles
	offsetSec   int64
	offsetCyc   uint64
	isAbsolute  bool

	frozen bool

	hasCurrent   bool
	currentValue uint64
}

// NewClockClass creates a clock class ticking at frequencyHz. frequency must
// be non-zero: a clock that never advances cannot convert cycles to
// nanoseconds.
func NewClockClass(name string, frequencyHz uint64) (*ClockClass, error) {
	if frequencyHz == 0 {
		return nil, newErr(KindInvalidArgument, "clock class frequency must be non-zero")
	}
	cc := &ClockClass{name: name, frequency: frequencyHz}
	cc.rc = newRefCount(func() {})
	return cc, nil
}

// Acquire increments the reference count.
func (cc *ClockClass) Acquire() error {
	cc.rc.acquire()
	return nil
}

// Release decrements the reference count.
func (cc *ClockClass) Release() {
	cc.rc.release()
}

// Name returns the clock's identifying name.
func (cc *ClockClass) Name() string { return cc.name }

// Frequency returns the clock's frequency in Hz.
func (cc *ClockClass) Frequency() uint64 { return cc.frequency }

// IsFrozen reports whether this clock class may still be mutated.
func (cc *ClockClass) IsFrozen() bool { return cc.frozen }

// Freeze marks the clock class immutable. Idempotent.
func (cc *ClockClass) Freeze() { cc.frozen = true }

func (cc *ClockClass) checkMutable(what string) error {
	if cc.frozen {
		return newErr(KindFrozen, "cannot set %s on a frozen clock class", what)
	}
	return nil
}

// SetDescription sets a free-form human-readable description.
func (cc *ClockClass) SetDescription(d string) error {
	if err := cc.checkMutable("description"); err != nil {
		return err
	}
	cc.description = d
	return nil
}

// Description returns the clock's free-form description.
func (cc *ClockClass) Description() string { return cc.description }

// SetUUID sets the clock's UUID, used to correlate clocks of the same
// physical source across independently captured traces.
func (cc *ClockClass) SetUUID(uuid string) error {
	if err := cc.checkMutable("uuid"); err != nil {
		return err
	}
	cc.uuid = uuid
	return nil
}

// UUID returns the clock's UUID, or "" if unset.
func (cc *ClockClass) UUID() string { return cc.uuid }

// SetPrecision sets the clock's precision, in cycles.
func (cc *ClockClass) SetPrecision(cycles uint64) error {
	if err := cc.checkMutable("precision"); err != nil {
		return err
	}
	cc.precision = cycles
	return nil
}

// Precision returns the clock's precision, in cycles.
func (cc *ClockClass) Precision() uint64 { return cc.precision }

// SetOffset sets the clock's offset from the Unix epoch as a whole-seconds
// part plus a sub-second cycles part. cycles must be less than frequency;
// NsFromCycles does not itself normalize an oversized offset.
func (cc *ClockClass) SetOffset(seconds int64, cycles uint64) error {
	if err := cc.checkMutable("offset"); err != nil {
		return err
	}
	cc.offsetSec = seconds
	cc.offsetCyc = cycles
	return nil
}

// Offset returns the clock's offset from the Unix epoch.
func (cc *ClockClass) Offset() (seconds int64, cycles uint64) {
	return cc.offsetSec, cc.offsetCyc
}

// SetIsAbsolute records whether this clock's origin is the Unix epoch itself
// (absolute) as opposed to an arbitrary, trace-local origin.
func (cc *ClockClass) SetIsAbsolute(abs bool) error {
	if err := cc.checkMutable("is_absolute"); err != nil {
		return err
	}
	cc.isAbsolute = abs
	return nil
}

// IsAbsolute reports whether this clock's origin is the Unix epoch.
func (cc *ClockClass) IsAbsolute() bool { return cc.isAbsolute }

// floorDiv performs Euclidean (floor) division, needed because cycle and
// nanosecond arithmetic must round toward negative infinity for
// pre-epoch offsets to convert correctly.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// NsFromCycles converts a cycle count at frequencyHz into nanoseconds,
// rounding toward negative infinity on overflowable intermediate results.
// It has no access to a specific clock's offset: callers needing wall-clock
// time use (*ClockClass).RealtimeNs instead.
func NsFromCycles(frequencyHz, cycles uint64) uint64 {
	if frequencyHz == 0 {
		return 0
	}
	const nsPerSec = 1_000_000_000
	whole := cycles / frequencyHz
	rem := cycles % frequencyHz
	return whole*nsPerSec + (rem*nsPerSec)/frequencyHz
}

// RealtimeNs converts a cycle count measured by this clock into nanoseconds
// since the Unix epoch, folding in the clock's configured offset. The offset
// cycles and the value are summed before the division by frequency, not
// floored separately, so the result matches offset_s*1e9 +
// floor((offset_cycles+value)*1e9/frequency) exactly.
func (cc *ClockClass) RealtimeNs(cycles uint64) int64 {
	combinedNs := int64(NsFromCycles(cc.frequency, cc.offsetCyc+cycles))
	return cc.offsetSec*1_000_000_000 + combinedNs
}

// HasCurrentValue reports whether this clock class has a writer-mode current
// value set via Advance.
func (cc *ClockClass) HasCurrentValue() bool { return cc.hasCurrent }

// CurrentValue returns the writer-mode current cycle value, or (0, false) if
// none has ever been set.
func (cc *ClockClass) CurrentValue() (uint64, bool) {
	if !cc.hasCurrent {
		return 0, false
	}
	return cc.currentValue, true
}

// Advance sets the clock's current cycle value. Field values mapped to this
// clock class call Advance as a side effect of being assigned (writer mode),
// so the clock's value always reflects the most recently serialized sample.
func (cc *ClockClass) Advance(cycles uint64) error {
	if cycles < cc.currentValue && cc.hasCurrent {
		return newErr(KindInvalidArgument, "clock class %q cannot move backwards from %d to %d", cc.name, cc.currentValue, cycles)
	}
	cc.currentValue = cycles
	cc.hasCurrent = true
	return nil
}

// String implements fmt.Stringer for debugging and log output.
func (cc *ClockClass) String() string {
	if cc == nil {
		return "<nil clock class>"
	}
	return fmt.Sprintf("ClockClass{name=%q, frequency=%d, frozen=%t}", cc.name, cc.frequency, cc.frozen)
}
