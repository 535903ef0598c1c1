// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIntegerLittleEndianMultiByte(t *testing.T) {
	fc, err := NewIntegerFieldClass(16, false, BaseHexadecimal, EncodingNone, ByteOrderLittleEndian)
	require.NoError(t, err)

	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{0x34, 0x12}), nil)
	fv, status := r.DecodeField(fc)
	require.Equal(t, BTRStatusOK, status)
	v, err := fv.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 0x1234, v)
}

func TestDecodeIntegerBigEndian(t *testing.T) {
	fc, err := NewIntegerFieldClass(16, false, BaseHexadecimal, EncodingNone, ByteOrderBigEndian)
	require.NoError(t, err)

	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{0x12, 0x34}), nil)
	fv, status := r.DecodeField(fc)
	require.Equal(t, BTRStatusOK, status)
	v, err := fv.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 0x1234, v)
}

func TestDecodeSignedIntegerSignExtends(t *testing.T) {
	fc, err := NewIntegerFieldClass(8, true, BaseDecimal, EncodingNone, ByteOrderBigEndian)
	require.NoError(t, err)

	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{0xFF}), nil)
	fv, status := r.DecodeField(fc)
	require.Equal(t, BTRStatusOK, status)
	v, err := fv.Signed()
	require.NoError(t, err)
	assert.EqualValues(t, -1, v)
}

func TestDecodeBitLevelNonByteAlignedIntegers(t *testing.T) {
	s, err := NewStructFieldClass(1)
	require.NoError(t, err)
	three, err := NewIntegerFieldClass(3, false, BaseDecimal, EncodingNone, ByteOrderBigEndian)
	require.NoError(t, err)
	five, err := NewIntegerFieldClass(5, false, BaseDecimal, EncodingNone, ByteOrderBigEndian)
	require.NoError(t, err)
	require.NoError(t, s.AddField("a", three))
	require.NoError(t, s.AddField("b", five))

	// 0xBA = 1011_1010: first 3 bits = 101 (5), remaining 5 bits = 11010 (26).
	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{0xBA}), nil)
	fv, status := r.DecodeField(s)
	require.Equal(t, BTRStatusOK, status)

	a, err := fv.GetFieldByName("a")
	require.NoError(t, err)
	av, err := a.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 5, av)

	b, err := fv.GetFieldByName("b")
	require.NoError(t, err)
	bv, err := b.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 26, bv)
}

func TestDecodeEnumerationNotifiesLabelsAndSetsValue(t *testing.T) {
	container, err := NewIntegerFieldClass(8, false, BaseDecimal, EncodingNone, ByteOrderBigEndian)
	require.NoError(t, err)
	enum, err := NewEnumerationFieldClass(container)
	require.NoError(t, err)
	require.NoError(t, enum.AddMapping("low", 0, 9))
	require.NoError(t, enum.AddMapping("mid", 5, 15))

	var gotLabels []string
	cb := &BTRCallbacks{
		UnsignedEnum: func(fc *FieldClass, v uint64, labels []string) error {
			gotLabels = labels
			return nil
		},
	}
	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{7}), cb)
	fv, status := r.DecodeField(enum)
	require.Equal(t, BTRStatusOK, status)

	v, err := fv.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)
	assert.ElementsMatch(t, []string{"low", "mid"}, gotLabels)
}

func TestDecodeFloatLittleEndian(t *testing.T) {
	fc, err := NewFloatFieldClass(8, 24, ByteOrderLittleEndian)
	require.NoError(t, err)

	// 1.5f = 0x3FC00000, little-endian bytes: 00 00 C0 3F.
	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{0x00, 0x00, 0xC0, 0x3F}), nil)
	fv, status := r.DecodeField(fc)
	require.Equal(t, BTRStatusOK, status)
	v, err := fv.Float()
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestDecodeStringNulTerminated(t *testing.T) {
	fc, err := NewStringFieldClass(EncodingUTF8)
	require.NoError(t, err)

	var fragments []string
	cb := &BTRCallbacks{
		StringFragment: func(fc *FieldClass, fragment string) error {
			fragments = append(fragments, fragment)
			return nil
		},
	}
	r := NewBinaryTypeReader(NewByteSliceMedium([]byte("hi\x00")), cb)
	fv, status := r.DecodeField(fc)
	require.Equal(t, BTRStatusOK, status)
	assert.Equal(t, "hi", fv.String())
	assert.Equal(t, []string{"h", "i"}, fragments)
}

func TestDecodeStringWithoutTerminatorIsInvalid(t *testing.T) {
	fc, err := NewStringFieldClass(EncodingUTF8)
	require.NoError(t, err)

	r := NewBinaryTypeReader(NewByteSliceMedium([]byte("hi")), nil)
	_, status := r.DecodeField(fc)
	assert.Equal(t, BTRStatusInvalid, status)
}

func TestDecodeSequenceViaGetSequenceLengthCallback(t *testing.T) {
	seq, err := NewSequenceFieldClass("n", u8(t))
	require.NoError(t, err)

	cb := &BTRCallbacks{
		GetSequenceLength: func(fc *FieldClass) (uint64, error) { return 3, nil },
	}
	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{1, 2, 3}), cb)
	fv, status := r.DecodeField(seq)
	require.Equal(t, BTRStatusOK, status)

	n, ok := fv.Length()
	require.True(t, ok)
	assert.EqualValues(t, 3, n)
	e2, err := fv.GetElementByIndex(2)
	require.NoError(t, err)
	v, err := e2.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
}

func TestDecodeSequenceViaResolvedLengthConstant(t *testing.T) {
	seq, err := NewSequenceFieldClass("env.fixed_len", u8(t))
	require.NoError(t, err)
	payload, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, payload.AddField("data", seq))

	ctx := &resolverContext{env: map[string]any{"fixed_len": int64(2)}, currentScope: ScopeEventPayload}
	require.NoError(t, ctx.visit(payload))

	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{9, 8}), nil)
	fv, status := r.DecodeField(seq)
	require.Equal(t, BTRStatusOK, status)
	n, ok := fv.Length()
	require.True(t, ok)
	assert.EqualValues(t, 2, n)
}

func TestDecodeSequenceResolvesSiblingLengthWithoutCallback(t *testing.T) {
	n, err := NewIntegerFieldClass(16, false, BaseDecimal, EncodingNone, ByteOrderBigEndian)
	require.NoError(t, err)
	seq, err := NewSequenceFieldClass("n", u8(t))
	require.NoError(t, err)
	payload, err := NewStructFieldClass(8)
	require.NoError(t, err)
	require.NoError(t, payload.AddField("n", n))
	require.NoError(t, payload.AddField("s", seq))

	ctx := &resolverContext{currentScope: ScopeEventPayload}
	require.NoError(t, ctx.visit(payload))

	// n=3, s=[0x41,0x42,0x43], one trailing byte left unread.
	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{0x00, 0x03, 0x41, 0x42, 0x43, 0x00}), &BTRCallbacks{})
	fv, status := r.DecodeField(payload)
	require.Equal(t, BTRStatusOK, status)

	nFV, err := fv.GetFieldByName("n")
	require.NoError(t, err)
	nv, err := nFV.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 3, nv)

	sFV, err := fv.GetFieldByName("s")
	require.NoError(t, err)
	length, ok := sFV.Length()
	require.True(t, ok)
	assert.EqualValues(t, 3, length)
	e2, err := sFV.GetElementByIndex(2)
	require.NoError(t, err)
	v, err := e2.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 0x43, v)

	assert.EqualValues(t, 5, r.ConsumedBytes(), "the reader's returned consumed count is 5")
}

func TestDecodeUntaggedVariantViaGetVariantSelector(t *testing.T) {
	v, err := NewUntaggedVariantFieldClass()
	require.NoError(t, err)
	require.NoError(t, v.AddSelector("a", u8(t)))
	bigField, err := NewIntegerFieldClass(16, false, BaseDecimal, EncodingNone, ByteOrderBigEndian)
	require.NoError(t, err)
	require.NoError(t, v.AddSelector("b", bigField))

	cb := &BTRCallbacks{
		GetVariantSelector: func(fc *FieldClass) (string, error) { return "b", nil },
	}
	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{0x01, 0x02}), cb)
	fv, status := r.DecodeField(v)
	require.Equal(t, BTRStatusOK, status)

	selected, err := fv.SelectedField()
	require.NoError(t, err)
	val, err := selected.Unsigned()
	require.NoError(t, err)
	assert.EqualValues(t, 0x0102, val)
}

func TestDecodeReturnsEOFOnShortByteSliceMedium(t *testing.T) {
	fc, err := NewIntegerFieldClass(32, false, BaseDecimal, EncodingNone, ByteOrderBigEndian)
	require.NoError(t, err)

	// A ByteSliceMedium with fewer bytes than required reports EOF, not
	// Again, once it has served what it has.
	r := NewBinaryTypeReader(NewByteSliceMedium([]byte{1, 2}), nil)
	_, status := r.DecodeField(fc)
	assert.Equal(t, BTRStatusEOF, status)
}
