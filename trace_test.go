// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceEnvironmentAndUnknownAttributes(t *testing.T) {
	trace := NewTrace("t")
	require.NoError(t, trace.SetEnvironmentEntry("hostname", "box1"))
	v, ok := trace.EnvironmentEntry("hostname")
	require.True(t, ok)
	assert.Equal(t, "box1", v)

	require.NoError(t, trace.SetUnknownAttribute("vendor.thing", 7))
	v, ok = trace.UnknownAttribute("vendor.thing")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestTraceAddClockClassRejectsDuplicateNames(t *testing.T) {
	trace := NewTrace("t")
	cc1, err := NewClockClass("monotonic", 1000)
	require.NoError(t, err)
	require.NoError(t, trace.AddClockClass(cc1))

	cc2, err := NewClockClass("monotonic", 2000)
	require.NoError(t, err)
	assert.ErrorIs(t, trace.AddClockClass(cc2), ErrDuplicate)

	assert.Same(t, cc1, trace.ClockClassByName("monotonic"))
}

func TestTraceAddStreamClassAssignsAutoIDAndFreezesPacketHeaderOnce(t *testing.T) {
	trace := NewTrace("t")
	header, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, header.AddField("magic", u8(t)))
	require.NoError(t, trace.SetPacketHeaderFieldClass(header))

	assert.False(t, trace.IsFrozen())

	eventHeader, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, eventHeader.AddField("id", u8(t)))
	sc := NewStreamClass()
	require.NoError(t, sc.SetEventHeaderFieldClass(eventHeader))

	require.NoError(t, trace.AddStreamClass(sc))

	id, ok := sc.ID()
	require.True(t, ok)
	assert.EqualValues(t, 0, id)
	assert.True(t, trace.IsFrozen())
	assert.True(t, trace.PacketHeaderFieldClass().IsFrozen())

	sc2Header, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, sc2Header.AddField("id", u8(t)))
	sc2 := NewStreamClass()
	require.NoError(t, sc2.SetEventHeaderFieldClass(sc2Header))
	require.NoError(t, trace.AddStreamClass(sc2))
	id2, _ := sc2.ID()
	assert.EqualValues(t, 1, id2)
}

func TestTraceAddStreamClassRejectsDuplicateID(t *testing.T) {
	trace := NewTrace("t")

	mkStream := func(id int64) *StreamClass {
		eh, err := NewStructFieldClass(8)
		require.NoError(t, err)
		require.NoError(t, eh.AddField("id", u8(t)))
		sc := NewStreamClass()
		require.NoError(t, sc.SetEventHeaderFieldClass(eh))
		require.NoError(t, sc.SetID(id))
		return sc
	}

	require.NoError(t, trace.AddStreamClass(mkStream(3)))
	assert.ErrorIs(t, trace.AddStreamClass(mkStream(3)), ErrDuplicate)
}

func TestPacketHeaderMustBeStruct(t *testing.T) {
	trace := NewTrace("t")
	err := trace.SetPacketHeaderFieldClass(u8(t))
	assert.ErrorIs(t, err, ErrBadType)
}

func TestSetPacketHeaderFieldClassRejectedOnceTraceFrozen(t *testing.T) {
	trace := NewTrace("t")
	header, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, trace.SetPacketHeaderFieldClass(header))
	assert.False(t, trace.IsFrozen())

	eh, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, eh.AddField("id", u8(t)))
	sc := NewStreamClass()
	require.NoError(t, sc.SetEventHeaderFieldClass(eh))
	require.NoError(t, trace.AddStreamClass(sc))
	assert.True(t, trace.IsFrozen())

	newHeader, err := NewStructFieldClass(8)
	require.NoError(t, err)
	assert.ErrorIs(t, trace.SetPacketHeaderFieldClass(newHeader), ErrFrozen)
}
