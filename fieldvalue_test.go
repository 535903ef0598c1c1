// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFieldValueEagerlyInstantiatesStructAndArray(t *testing.T) {
	inner, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, inner.AddField("a", u8(t)))
	require.NoError(t, inner.AddField("b", u8(t)))

	arr, err := NewArrayFieldClass(3, u8(t))
	require.NoError(t, err)
	require.NoError(t, inner.AddField("arr", arr))

	fv, err := CreateFieldValue(inner)
	require.NoError(t, err)

	a, err := fv.GetFieldByName("a")
	require.NoError(t, err)
	assert.Equal(t, KindFCInteger, a.Kind())

	arrFV, err := fv.GetFieldByName("arr")
	require.NoError(t, err)
	n, ok := arrFV.Length()
	require.True(t, ok)
	assert.EqualValues(t, 3, n)
	_, err = arrFV.GetElementByIndex(2)
	assert.NoError(t, err, "array elements are created up front")
}

func TestSequenceStaysEmptyUntilSetLength(t *testing.T) {
	seq, err := NewSequenceFieldClass("len", u8(t))
	require.NoError(t, err)

	fv, err := CreateFieldValue(seq)
	require.NoError(t, err)

	_, ok := fv.Length()
	assert.False(t, ok)
	_, err = fv.GetElementByIndex(0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, fv.SetLength(5))
	n, ok := fv.Length()
	require.True(t, ok)
	assert.EqualValues(t, 5, n)

	assert.ErrorIs(t, fv.SetLength(1), ErrInvalidArgument, "sequence length can only be set once")
}

func TestVariantSetTagIsRepeatableAndReplacesSelection(t *testing.T) {
	v, err := NewVariantFieldClass("sel")
	require.NoError(t, err)
	require.NoError(t, v.AddSelector("a", u8(t)))
	require.NoError(t, v.AddSelector("b", u8(t)))

	fv, err := CreateFieldValue(v)
	require.NoError(t, err)

	_, err = fv.SelectedField()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, fv.SetTag("a"))
	first, err := fv.SelectedField()
	require.NoError(t, err)

	require.NoError(t, fv.SetTag("b"))
	second, err := fv.SelectedField()
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	assert.ErrorIs(t, fv.SetTag("nope"), ErrNotFound)
}

func TestSetSignedAndSetUnsignedRangeChecks(t *testing.T) {
	s8, err := NewIntegerFieldClass(8, true, BaseDecimal, EncodingNone, ByteOrderLittleEndian)
	require.NoError(t, err)
	fv, err := CreateFieldValue(s8)
	require.NoError(t, err)

	assert.ErrorIs(t, fv.SetSigned(200), ErrOutOfRange)
	require.NoError(t, fv.SetSigned(-5))
	v, err := fv.Signed()
	require.NoError(t, err)
	assert.EqualValues(t, -5, v)

	assert.ErrorIs(t, fv.SetUnsigned(1), ErrBadType, "field is signed, must use SetSigned")

	u8fc := u8(t)
	ufv, err := CreateFieldValue(u8fc)
	require.NoError(t, err)
	assert.ErrorIs(t, ufv.SetUnsigned(300), ErrOutOfRange)
	require.NoError(t, ufv.SetUnsigned(250))
	uv, err := ufv.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 250, uv)
}

func TestSetUnsignedAdvancesMappedClockClass(t *testing.T) {
	cc, err := NewClockClass("writer", 1000)
	require.NoError(t, err)

	fc, err := NewIntegerFieldClass(32, false, BaseDecimal, EncodingNone, ByteOrderLittleEndian)
	require.NoError(t, err)
	require.NoError(t, fc.SetMappedClockClass(cc))

	fv, err := CreateFieldValue(fc)
	require.NoError(t, err)

	require.NoError(t, fv.SetUnsigned(42))
	v, ok := cc.CurrentValue()
	require.True(t, ok)
	assert.EqualValues(t, 42, v)

	assert.ErrorIs(t, fv.SetUnsigned(10), ErrInvalidArgument, "clock cannot move backwards")
}

func TestEnumerationLabels(t *testing.T) {
	enum, err := NewEnumerationFieldClass(u8(t))
	require.NoError(t, err)
	require.NoError(t, enum.AddMapping("low", 0, 9))
	require.NoError(t, enum.AddMapping("mid", 5, 15))

	fv, err := CreateFieldValue(enum)
	require.NoError(t, err)
	require.NoError(t, fv.SetUnsigned(7))

	labels, err := fv.Labels()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"low", "mid"}, labels)
}

func TestValidateDetectsUnsetSequenceLength(t *testing.T) {
	seq, err := NewSequenceFieldClass("len", u8(t))
	require.NoError(t, err)
	structFC, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, structFC.AddField("data", seq))

	fv, err := CreateFieldValue(structFC)
	require.NoError(t, err)

	assert.ErrorIs(t, fv.Validate(), ErrValidationFailed)

	data, err := fv.GetFieldByName("data")
	require.NoError(t, err)
	require.NoError(t, data.SetLength(0))
	assert.NoError(t, fv.Validate())
}

func TestValidateDetectsUnassignedScalarLeaf(t *testing.T) {
	structFC, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, structFC.AddField("n", u8(t)))

	fv, err := CreateFieldValue(structFC)
	require.NoError(t, err)
	assert.ErrorIs(t, fv.Validate(), ErrValidationFailed, "n has never been assigned a value")

	n, err := fv.GetFieldByName("n")
	require.NoError(t, err)
	require.NoError(t, n.SetUnsigned(3))
	assert.NoError(t, fv.Validate())
}

func TestDeepCopyIsIndependent(t *testing.T) {
	fc, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, fc.AddField("a", u8(t)))

	fv, err := CreateFieldValue(fc)
	require.NoError(t, err)
	a, err := fv.GetFieldByName("a")
	require.NoError(t, err)
	require.NoError(t, a.SetUnsigned(1))

	cp := fv.DeepCopy()
	cpA, err := cp.GetFieldByName("a")
	require.NoError(t, err)

	require.NoError(t, cpA.SetUnsigned(99))
	orig, err := a.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 1, orig, "mutating the copy must not affect the original")
}
