// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidStreamClass(t *testing.T) (*Trace, *StreamClass) {
	t.Helper()
	trace := NewTrace("t")
	eventHeader, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, eventHeader.AddField("id", u8(t)))
	sc := NewStreamClass()
	require.NoError(t, sc.SetEventHeaderFieldClass(eventHeader))
	return trace, sc
}

func TestAddEventClassRequiresEventHeader(t *testing.T) {
	trace := NewTrace("t")
	sc := NewStreamClass()
	ec := NewEventClass("ev")
	err := sc.AddEventClass(trace, ec)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestAddEventClassAssignsAutomaticSequentialIDs(t *testing.T) {
	trace, sc := newValidStreamClass(t)

	first := newValidEventClass(t, "first")
	require.NoError(t, sc.AddEventClass(trace, first))
	id, ok := first.ID()
	require.True(t, ok)
	assert.EqualValues(t, 0, id)

	second := newValidEventClass(t, "second")
	require.NoError(t, sc.AddEventClass(trace, second))
	id, ok = second.ID()
	require.True(t, ok)
	assert.EqualValues(t, 1, id)
}

func TestAddEventClassRejectsDuplicateID(t *testing.T) {
	trace, sc := newValidStreamClass(t)

	ec1 := newValidEventClass(t, "a")
	require.NoError(t, ec1.SetID(5))
	require.NoError(t, sc.AddEventClass(trace, ec1))

	ec2 := newValidEventClass(t, "b")
	require.NoError(t, ec2.SetID(5))
	err := sc.AddEventClass(trace, ec2)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAddEventClassDisallowedWithoutIDWhenAutoAssignmentDisabled(t *testing.T) {
	trace, sc := newValidStreamClass(t)
	require.NoError(t, sc.SetAssignsAutomaticEventClassIDs(false))

	ec := newValidEventClass(t, "no-id")
	err := sc.AddEventClass(trace, ec)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func newValidEventClass(t *testing.T, name string) *EventClass {
	t.Helper()
	payload, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, payload.AddField("value", u8(t)))
	ec := NewEventClass(name)
	require.NoError(t, ec.SetPayloadFieldClass(payload))
	return ec
}

func TestAddEventClassFreezesAndIndexesByID(t *testing.T) {
	trace, sc := newValidStreamClass(t)
	ec := newValidEventClass(t, "ev")
	require.NoError(t, sc.AddEventClass(trace, ec))

	assert.True(t, ec.IsFrozen())
	assert.Equal(t, 1, sc.EventClassCount())
	got, err := sc.EventClassByIndex(0)
	require.NoError(t, err)
	assert.Same(t, ec, got)
	assert.Same(t, ec, sc.EventClassByID(0))
}

func TestAddEventClassRejectsEmptyPayload(t *testing.T) {
	trace, sc := newValidStreamClass(t)

	noPayload := NewEventClass("no-payload")
	assert.ErrorIs(t, sc.AddEventClass(trace, noPayload), ErrValidationFailed)

	emptyPayload, err := NewStructFieldClass(8)
	require.NoError(t, err)
	zeroFields := NewEventClass("zero-fields")
	require.NoError(t, zeroFields.SetPayloadFieldClass(emptyPayload))
	assert.ErrorIs(t, sc.AddEventClass(trace, zeroFields), ErrValidationFailed)
}

func TestStreamClassFreezeCascadesToScopes(t *testing.T) {
	trace, sc := newValidStreamClass(t)
	pc, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, sc.SetPacketContextFieldClass(pc))

	require.NoError(t, trace.AddStreamClass(sc))

	assert.True(t, sc.IsFrozen())
	assert.NotSame(t, pc, sc.PacketContextFieldClass(), "validation swaps in a freshly resolved copy")
	assert.True(t, sc.PacketContextFieldClass().IsFrozen())
	assert.ErrorIs(t, sc.SetName("late"), ErrFrozen)
}
