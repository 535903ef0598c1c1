// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"fmt"
	"math"
)

// FieldValue is one instance of data shaped by a FieldClass: a struct field
// value has all of its children created up front (mirroring its field
// class's fixed shape), a variant field value stays empty until SetTag picks
// a selector, and a sequence field value stays empty until SetLength
// allocates its elements. Array field values, by contrast, have their fixed
// number of elements created up front just like structs.
type FieldValue struct {
	fc   *FieldClass
	kind FieldClassKind

	intVal   int64  // integer / enumeration (both signed and unsigned stored as bit pattern)
	floatVal float64
	strVal   string

	structFields []*FieldValue // parallel to fc.structFields

	variantTag   int // selected index into fc.variantSelectors, -1 if unset
	variantValue *FieldValue

	arrayElements []*FieldValue // fixed length, created up front

	seqElements []*FieldValue // grows only via SetLength
	seqLength   uint64
	hasSeqLen   bool

	assigned bool // true once a scalar leaf has received SetSigned/SetUnsigned/SetFloat/SetString
}

// CreateFieldValue instantiates a field value shaped by fc. Struct and array
// field values recursively instantiate their fixed children; variant and
// sequence field values start empty.
func CreateFieldValue(fc *FieldClass) (*FieldValue, error) {
	if fc == nil {
		return nil, newErr(KindInvalidArgument, "cannot create a field value from a nil field class")
	}
	fv := &FieldValue{fc: fc, kind: fc.Kind(), variantTag: -1}
	switch fc.Kind() {
	case KindFCStruct:
		fv.structFields = make([]*FieldValue, fc.FieldCount())
		for i := 0; i < fc.FieldCount(); i++ {
			_, child, _ := fc.FieldByIndex(i)
			cv, err := CreateFieldValue(child)
			if err != nil {
				return nil, err
			}
			fv.structFields[i] = cv
		}
	case KindFCArray:
		n := int(fc.Length())
		fv.arrayElements = make([]*FieldValue, n)
		for i := 0; i < n; i++ {
			cv, err := CreateFieldValue(fc.ElementFieldClass())
			if err != nil {
				return nil, err
			}
			fv.arrayElements[i] = cv
		}
	}
	return fv, nil
}

// FieldClass returns the field class that shapes this field value.
func (fv *FieldValue) FieldClass() *FieldClass { return fv.fc }

// Kind returns the tag of the shaping field class.
func (fv *FieldValue) Kind() FieldClassKind { return fv.kind }

// GetFieldByName returns a struct field value's named child.
func (fv *FieldValue) GetFieldByName(name string) (*FieldValue, error) {
	if fv.kind != KindFCStruct {
		return nil, newErr(KindBadType, "get_field_by_name requires a struct field value, got %s", fv.kind)
	}
	i := fv.fc.FieldIndexByName(name)
	if i < 0 {
		return nil, newErr(KindNotFound, "struct has no field %q", name)
	}
	return fv.structFields[i], nil
}

// GetFieldByIndex returns a struct field value's i'th child.
func (fv *FieldValue) GetFieldByIndex(i int) (*FieldValue, error) {
	if fv.kind != KindFCStruct {
		return nil, newErr(KindBadType, "get_field_by_index requires a struct field value, got %s", fv.kind)
	}
	if i < 0 || i >= len(fv.structFields) {
		return nil, newErr(KindNotFound, "struct field index %d out of range", i)
	}
	return fv.structFields[i], nil
}

// GetElementByIndex returns an array or sequence field value's i'th element.
func (fv *FieldValue) GetElementByIndex(i int) (*FieldValue, error) {
	switch fv.kind {
	case KindFCArray:
		if i < 0 || i >= len(fv.arrayElements) {
			return nil, newErr(KindNotFound, "array element index %d out of range", i)
		}
		return fv.arrayElements[i], nil
	case KindFCSequence:
		if !fv.hasSeqLen {
			return nil, newErr(KindInvalidArgument, "sequence length has not been set")
		}
		if i < 0 || i >= len(fv.seqElements) {
			return nil, newErr(KindNotFound, "sequence element index %d out of range", i)
		}
		return fv.seqElements[i], nil
	default:
		return nil, newErr(KindBadType, "get_element_by_index requires an array or sequence field value, got %s", fv.kind)
	}
}

// SetLength allocates a sequence field value's elements. It may be called
// only once per field value: sequences do not support resizing after the
// fact, matching the decode/encode contract where the length field always
// precedes the elements on the wire.
func (fv *FieldValue) SetLength(length uint64) error {
	if fv.kind != KindFCSequence {
		return newErr(KindBadType, "set_length requires a sequence field value, got %s", fv.kind)
	}
	if fv.hasSeqLen {
		return newErr(KindInvalidArgument, "sequence length has already been set")
	}
	elems := make([]*FieldValue, length)
	for i := range elems {
		cv, err := CreateFieldValue(fv.fc.ElementFieldClass())
		if err != nil {
			return err
		}
		elems[i] = cv
	}
	fv.seqElements = elems
	fv.seqLength = length
	fv.hasSeqLen = true
	return nil
}

// Length returns a sequence field value's element count, once SetLength has
// been called, or (0, false) otherwise. For array field values it always
// returns the field class's fixed length.
func (fv *FieldValue) Length() (uint64, bool) {
	switch fv.kind {
	case KindFCArray:
		return fv.fc.Length(), true
	case KindFCSequence:
		if !fv.hasSeqLen {
			return 0, false
		}
		return fv.seqLength, true
	default:
		return 0, false
	}
}

// SetTag selects a variant field value's active selector by label,
// instantiating its child field value. It may be called more than once: each
// call replaces the previously selected child.
func (fv *FieldValue) SetTag(label string) error {
	if fv.kind != KindFCVariant && fv.kind != KindFCUntaggedVariant {
		return newErr(KindBadType, "set_tag requires a variant field value, got %s", fv.kind)
	}
	i := fv.fc.SelectorIndexByLabel(label)
	if i < 0 {
		return newErr(KindNotFound, "variant has no selector %q", label)
	}
	_, child, _ := fv.fc.SelectorByIndex(i)
	cv, err := CreateFieldValue(child)
	if err != nil {
		return err
	}
	fv.variantTag = i
	fv.variantValue = cv
	return nil
}

// SelectedField returns a variant field value's currently selected child, or
// an error if SetTag has not yet been called.
func (fv *FieldValue) SelectedField() (*FieldValue, error) {
	if fv.kind != KindFCVariant && fv.kind != KindFCUntaggedVariant {
		return nil, newErr(KindBadType, "selected_field requires a variant field value, got %s", fv.kind)
	}
	if fv.variantTag < 0 {
		return nil, newErr(KindInvalidArgument, "variant tag has not been set")
	}
	return fv.variantValue, nil
}

func signedRange(bits uint8) (int64, int64) {
	if bits >= 64 {
		return math.MinInt64, math.MaxInt64
	}
	return -(1 << (bits - 1)), (1 << (bits - 1)) - 1
}

func unsignedMax(bits uint8) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << bits) - 1
}

// SetSigned assigns a signed integer value. It fails with KindOutOfRange if
// v does not fit in the field class's declared bit width, and advances the
// mapped clock class's current value, if any (writer-mode side effect, see
// ClockClass.Advance).
func (fv *FieldValue) SetSigned(v int64) error {
	fc := fv.underlyingIntegerFC()
	if fc == nil {
		return newErr(KindBadType, "set_signed requires an integer or enumeration field value, got %s", fv.kind)
	}
	if !fc.IsSigned() {
		return newErr(KindBadType, "field class is unsigned, use SetUnsigned")
	}
	lo, hi := signedRange(fc.SizeBits())
	if v < lo || v > hi {
		return newErr(KindOutOfRange, "value %d does not fit in signed %d-bit field", v, fc.SizeBits())
	}
	fv.intVal = v
	fv.assigned = true
	if fc.MappedClockClass() != nil {
		if err := fc.MappedClockClass().Advance(uint64(v)); err != nil {
			return err
		}
	}
	return nil
}

// SetUnsigned assigns an unsigned integer value, stored bit-for-bit in the
// same backing field as SetSigned.
func (fv *FieldValue) SetUnsigned(v uint64) error {
	fc := fv.underlyingIntegerFC()
	if fc == nil {
		return newErr(KindBadType, "set_unsigned requires an integer or enumeration field value, got %s", fv.kind)
	}
	if fc.IsSigned() {
		return newErr(KindBadType, "field class is signed, use SetSigned")
	}
	if v > unsignedMax(fc.SizeBits()) {
		return newErr(KindOutOfRange, "value %d does not fit in unsigned %d-bit field", v, fc.SizeBits())
	}
	fv.intVal = int64(v)
	fv.assigned = true
	if fc.MappedClockClass() != nil {
		if err := fc.MappedClockClass().Advance(v); err != nil {
			return err
		}
	}
	return nil
}

func (fv *FieldValue) underlyingIntegerFC() *FieldClass {
	switch fv.kind {
	case KindFCInteger:
		return fv.fc
	case KindFCEnumeration:
		return fv.fc.EnumContainerFieldClass()
	default:
		return nil
	}
}

// Signed returns an integer or enumeration field value's content as signed.
func (fv *FieldValue) Signed() (int64, error) {
	if fv.underlyingIntegerFC() == nil {
		return 0, newErr(KindBadType, "signed requires an integer or enumeration field value, got %s", fv.kind)
	}
	return fv.intVal, nil
}

// Unsigned returns an integer or enumeration field value's content as
// unsigned.
func (fv *FieldValue) Unsigned() (uint64, error) {
	if fv.underlyingIntegerFC() == nil {
		return 0, newErr(KindBadType, "unsigned requires an integer or enumeration field value, got %s", fv.kind)
	}
	return uint64(fv.intVal), nil
}

// Labels yields every enumeration label whose range covers this field
// value's current content.
func (fv *FieldValue) Labels() ([]string, error) {
	if fv.kind != KindFCEnumeration {
		return nil, newErr(KindBadType, "labels requires an enumeration field value, got %s", fv.kind)
	}
	var out []string
	for label := range fv.fc.LabelsFor(fv.intVal) {
		out = append(out, label)
	}
	return out, nil
}

// SetFloat assigns a float field value's content.
func (fv *FieldValue) SetFloat(v float64) error {
	if fv.kind != KindFCFloat {
		return newErr(KindBadType, "set_float requires a float field value, got %s", fv.kind)
	}
	fv.floatVal = v
	fv.assigned = true
	return nil
}

// Float returns a float field value's content.
func (fv *FieldValue) Float() (float64, error) {
	if fv.kind != KindFCFloat {
		return 0, newErr(KindBadType, "float requires a float field value, got %s", fv.kind)
	}
	return fv.floatVal, nil
}

// SetString assigns a string field value's content.
func (fv *FieldValue) SetString(v string) error {
	if fv.kind != KindFCString {
		return newErr(KindBadType, "set_string requires a string field value, got %s", fv.kind)
	}
	fv.strVal = v
	fv.assigned = true
	return nil
}

// String returns a string field value's content if this is a String field
// value, and its debug representation otherwise (implements fmt.Stringer).
func (fv *FieldValue) String() string {
	if fv == nil {
		return "<nil field value>"
	}
	if fv.kind == KindFCString {
		return fv.strVal
	}
	return fmt.Sprintf("FieldValue{kind=%s}", fv.kind)
}

// Validate recursively checks that this field value is complete: every
// scalar leaf (integer, float, string, enumeration) has been assigned, every
// variant has a selected tag, and every sequence has a set length. Structs
// and arrays are always complete by construction, once their children are.
func (fv *FieldValue) Validate() error {
	if fv == nil {
		return nil
	}
	switch fv.kind {
	case KindFCInteger, KindFCFloat, KindFCString, KindFCEnumeration:
		if !fv.assigned {
			return newErr(KindValidationFailed, "%s field has not been assigned a value", fv.kind)
		}
	case KindFCStruct:
		for i, child := range fv.structFields {
			if err := child.Validate(); err != nil {
				name, _, _ := fv.fc.FieldByIndex(i)
				return newErr(KindValidationFailed, "field %q: %v", name, err)
			}
		}
	case KindFCArray:
		for i, child := range fv.arrayElements {
			if err := child.Validate(); err != nil {
				return newErr(KindValidationFailed, "element %d: %v", i, err)
			}
		}
	case KindFCSequence:
		if !fv.hasSeqLen {
			return newErr(KindValidationFailed, "sequence length has not been set")
		}
		for i, child := range fv.seqElements {
			if err := child.Validate(); err != nil {
				return newErr(KindValidationFailed, "element %d: %v", i, err)
			}
		}
	case KindFCVariant, KindFCUntaggedVariant:
		if fv.variantTag < 0 {
			return newErr(KindValidationFailed, "variant tag has not been set")
		}
		if err := fv.variantValue.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DeepCopy returns an independent copy of fv, including every nested child.
func (fv *FieldValue) DeepCopy() *FieldValue {
	if fv == nil {
		return nil
	}
	cp := &FieldValue{
		fc:         fv.fc,
		kind:       fv.kind,
		intVal:     fv.intVal,
		floatVal:   fv.floatVal,
		strVal:     fv.strVal,
		variantTag: fv.variantTag,
		hasSeqLen:  fv.hasSeqLen,
		seqLength:  fv.seqLength,
		assigned:   fv.assigned,
	}
	for _, c := range fv.structFields {
		cp.structFields = append(cp.structFields, c.DeepCopy())
	}
	for _, c := range fv.arrayElements {
		cp.arrayElements = append(cp.arrayElements, c.DeepCopy())
	}
	for _, c := range fv.seqElements {
		cp.seqElements = append(cp.seqElements, c.DeepCopy())
	}
	if fv.variantValue != nil {
		cp.variantValue = fv.variantValue.DeepCopy()
	}
	return cp
}
