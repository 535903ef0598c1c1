// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"fmt"
	"iter"
	"unicode"
)

// FieldClassKind tags the kind of a field class node. A tagged-variant
// representation is used instead of virtual dispatch: the kind drives
// per-operation dispatch in the resolver and the binary type reader, and
// per-kind attributes live alongside each other in the same struct.
type FieldClassKind int

// Field class kinds.
const (
	KindFCUnknown FieldClassKind = iota
	KindFCInteger
	KindFCFloat
	KindFCEnumeration
	KindFCString
	KindFCStruct
	KindFCVariant
	KindFCArray
	KindFCSequence
	KindFCUntaggedVariant
)

func (k FieldClassKind) String() string {
	switch k {
	case KindFCInteger:
		return "integer"
	case KindFCFloat:
		return "float"
	case KindFCEnumeration:
		return "enumeration"
	case KindFCString:
		return "string"
	case KindFCStruct:
		return "struct"
	case KindFCVariant:
		return "variant"
	case KindFCArray:
		return "array"
	case KindFCSequence:
		return "sequence"
	case KindFCUntaggedVariant:
		return "untagged_variant"
	default:
		return "unknown"
	}
}

// ByteOrder is the wire byte order of a multi-byte field. This package does
// not resolve Native to a concrete order: Compare() treats Native as equal
// only to itself (Network counts as BigEndian), and the binary type reader
// assembles a Native field most significant byte first, as for BigEndian.
type ByteOrder int

// Byte orders.
const (
	ByteOrderNative ByteOrder = iota
	ByteOrderLittleEndian
	ByteOrderBigEndian
	ByteOrderNetwork // big endian, kept distinct so Compare can tell intent apart pre-resolution
)

// IntegerBase is the preferred textual base for pretty-printing an integer.
type IntegerBase int

// Integer bases.
const (
	BaseBinary IntegerBase = iota
	BaseOctal
	BaseDecimal
	BaseHexadecimal
)

// Encoding is the character encoding of a string-like field.
type Encoding int

// Encodings.
const (
	EncodingNone Encoding = iota
	EncodingUTF8
	EncodingASCII
)

// EnumMapping associates a label with an inclusive [Begin, End] range.
// Ranges may overlap and labels may repeat across ranges; insertion order is
// preserved.
type EnumMapping struct {
	Label string
	Begin int64
	End   int64
}

type structFieldEntry struct {
	Name string
	FC   *FieldClass
}

type variantSelectorEntry struct {
	Label string
	FC    *FieldClass
}

// FieldClass is a schema node: a tagged union of the ten CTF field class
// kinds, each carrying its own attributes. Every FieldClass is reference
// counted (C1) and observes the freeze discipline: once Frozen, no attribute
// may change and no child may be added.
type FieldClass struct {
	rc        *refCount
	kind      FieldClassKind
	alignment uint32
	frozen    bool

	// Integer / Enumeration container.
	intSizeBits  uint8
	intSigned    bool
	intBase      IntegerBase
	intEncoding  Encoding
	intByteOrder ByteOrder
	mappedClock  *ClockClass

	// Float.
	floatExpDigits uint8
	floatManDigits uint8
	floatByteOrder ByteOrder

	// Enumeration.
	enumContainer *FieldClass
	enumMappings  []EnumMapping

	// String.
	strEncoding Encoding

	// Struct.
	structFields      []structFieldEntry
	structIndexByName map[string]int
	structMinAlign    uint32

	// Variant / UntaggedVariant.
	variantTagRef          string
	variantTagName         string
	variantSelectors       []variantSelectorEntry
	variantIndexByLabel    map[string]int
	variantResolvedTagPath *FieldPath
	variantResolvedTagFC   *FieldClass

	// Array.
	arrayLength  uint64
	arrayElement *FieldClass

	// Sequence.
	seqLengthFieldName    string
	seqElement            *FieldClass
	seqResolvedLengthPath *FieldPath
	seqLengthConst        *uint64 // set when the length resolved to an env. constant
}

func newFieldClass(kind FieldClassKind) *FieldClass {
	fc := &FieldClass{kind: kind}
	fc.rc = newRefCount(func() {})
	return fc
}

// Acquire increments the reference count.
func (fc *FieldClass) Acquire() error {
	fc.rc.acquire()
	return nil
}

// Release decrements the reference count.
func (fc *FieldClass) Release() {
	fc.rc.release()
}

// Kind returns the tag of this field class.
func (fc *FieldClass) Kind() FieldClassKind { return fc.kind }

// Alignment returns the bit alignment of this field class.
func (fc *FieldClass) Alignment() uint32 { return fc.alignment }

// IsFrozen reports whether this field class can still be mutated.
func (fc *FieldClass) IsFrozen() bool { return fc.frozen }

// Freeze recursively marks fc and every transitively referenced field class
// as frozen. Freezing is idempotent.
func (fc *FieldClass) Freeze() {
	if fc == nil || fc.frozen {
		return
	}
	fc.frozen = true
	switch fc.kind {
	case KindFCEnumeration:
		fc.enumContainer.Freeze()
	case KindFCStruct:
		for _, f := range fc.structFields {
			f.FC.Freeze()
		}
	case KindFCVariant, KindFCUntaggedVariant:
		for _, s := range fc.variantSelectors {
			s.FC.Freeze()
		}
	case KindFCArray:
		fc.arrayElement.Freeze()
	case KindFCSequence:
		fc.seqElement.Freeze()
	}
}

// --- Constructors -----------------------------------------------------

// NewIntegerFieldClass creates an Integer field class. Size must be in
// [1,64].
func NewIntegerFieldClass(sizeBits uint8, signed bool, base IntegerBase, encoding Encoding, byteOrder ByteOrder) (*FieldClass, error) {
	if sizeBits < 1 || sizeBits > 64 {
		return nil, newErr(KindInvalidArgument, "integer size %d bits out of range [1,64]", sizeBits)
	}
	fc := newFieldClass(KindFCInteger)
	fc.intSizeBits = sizeBits
	fc.intSigned = signed
	fc.intBase = base
	fc.intEncoding = encoding
	fc.intByteOrder = byteOrder
	fc.alignment = defaultIntegerAlignment(sizeBits)
	return fc, nil
}

func defaultIntegerAlignment(sizeBits uint8) uint32 {
	if sizeBits%8 == 0 {
		return 8
	}
	return 1
}

// NewFloatFieldClass creates a Float field class. Exponent and mantissa
// digit counts must each be at least 1.
func NewFloatFieldClass(exponentDigits, mantissaDigits uint8, byteOrder ByteOrder) (*FieldClass, error) {
	if exponentDigits < 1 || mantissaDigits < 1 {
		return nil, newErr(KindInvalidArgument, "float digit counts must each be >= 1")
	}
	fc := newFieldClass(KindFCFloat)
	fc.floatExpDigits = exponentDigits
	fc.floatManDigits = mantissaDigits
	fc.floatByteOrder = byteOrder
	fc.alignment = 8
	return fc, nil
}

// SizeBits returns the total bit width of an Integer or Float field class,
// or of an Enumeration's container; it returns 0 for every other kind.
func (fc *FieldClass) SizeBits() uint8 {
	switch fc.kind {
	case KindFCInteger:
		return fc.intSizeBits
	case KindFCFloat:
		return fc.floatExpDigits + fc.floatManDigits
	case KindFCEnumeration:
		return fc.enumContainer.intSizeBits
	default:
		return 0
	}
}

// IsSigned reports whether an Integer or Enumeration field class is signed.
func (fc *FieldClass) IsSigned() bool {
	switch fc.kind {
	case KindFCInteger:
		return fc.intSigned
	case KindFCEnumeration:
		return fc.enumContainer.intSigned
	default:
		return false
	}
}

// ByteOrder returns the wire byte order of an Integer, Float or Enumeration
// field class.
func (fc *FieldClass) ByteOrder() ByteOrder {
	switch fc.kind {
	case KindFCInteger:
		return fc.intByteOrder
	case KindFCFloat:
		return fc.floatByteOrder
	case KindFCEnumeration:
		return fc.enumContainer.intByteOrder
	default:
		return ByteOrderNative
	}
}

// MappedClockClass returns the clock class an Integer field class is mapped
// to, or nil.
func (fc *FieldClass) MappedClockClass() *ClockClass { return fc.mappedClock }

// SetMappedClockClass maps an Integer field class to a clock class so that
// assigning it advances the clock's current value.
func (fc *FieldClass) SetMappedClockClass(cc *ClockClass) error {
	if fc.frozen {
		return newErr(KindFrozen, "cannot map a frozen integer field class to a clock class")
	}
	if fc.kind != KindFCInteger {
		return newErr(KindBadType, "mapped clock class requires an integer field class, got %s", fc.kind)
	}
	fc.mappedClock = cc
	return nil
}

// NewEnumerationFieldClass creates an Enumeration field class over the given
// Integer container.
func NewEnumerationFieldClass(container *FieldClass) (*FieldClass, error) {
	if container == nil || container.kind != KindFCInteger {
		return nil, newErr(KindInvalidArgument, "enumeration container must be a non-nil integer field class")
	}
	fc := newFieldClass(KindFCEnumeration)
	fc.enumContainer = container
	fc.alignment = container.alignment
	return fc, nil
}

// AddMapping appends a (label, [begin,end]) range to an Enumeration field
// class. Ranges may overlap; labels may repeat.
func (fc *FieldClass) AddMapping(label string, begin, end int64) error {
	if fc.kind != KindFCEnumeration {
		return newErr(KindBadType, "add_mapping requires an enumeration field class, got %s", fc.kind)
	}
	if fc.frozen {
		return newErr(KindFrozen, "cannot add mapping to a frozen enumeration field class")
	}
	if label == "" {
		return newErr(KindInvalidArgument, "mapping label must not be empty")
	}
	if begin > end {
		return newErr(KindInvalidArgument, "mapping range [%d,%d] is inverted", begin, end)
	}
	fc.enumMappings = append(fc.enumMappings, EnumMapping{Label: label, Begin: begin, End: end})
	return nil
}

// LabelsFor lazily yields every label whose range covers value.
func (fc *FieldClass) LabelsFor(value int64) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, m := range fc.enumMappings {
			if value >= m.Begin && value <= m.End {
				if !yield(m.Label) {
					return
				}
			}
		}
	}
}

// EnumMappings returns the ordered mapping list of an Enumeration field
// class.
func (fc *FieldClass) EnumMappings() []EnumMapping { return fc.enumMappings }

// EnumContainerFieldClass returns the Integer container of an Enumeration
// field class.
func (fc *FieldClass) EnumContainerFieldClass() *FieldClass { return fc.enumContainer }

// NewStringFieldClass creates a String field class.
func NewStringFieldClass(encoding Encoding) (*FieldClass, error) {
	fc := newFieldClass(KindFCString)
	fc.strEncoding = encoding
	fc.alignment = 8
	return fc, nil
}

// StringEncoding returns the character encoding of a String field class.
func (fc *FieldClass) StringEncoding() Encoding { return fc.strEncoding }

// NewStructFieldClass creates an empty Struct field class with the given
// minimum alignment (in bits; 1 if unspecified behavior is desired, pass 1).
func NewStructFieldClass(minimumAlignment uint32) (*FieldClass, error) {
	if minimumAlignment == 0 {
		minimumAlignment = 1
	}
	fc := newFieldClass(KindFCStruct)
	fc.structIndexByName = make(map[string]int)
	fc.structMinAlign = minimumAlignment
	fc.alignment = minimumAlignment
	return fc, nil
}

// isValidIdentifier reports whether name is a valid TSDL identifier: starts
// with a letter or underscore, continues with letters, digits or
// underscores.
func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}

// AddField appends a named child to a Struct field class.
func (fc *FieldClass) AddField(name string, child *FieldClass) error {
	if fc.kind != KindFCStruct {
		return newErr(KindBadType, "add_field requires a struct field class, got %s", fc.kind)
	}
	if fc.frozen {
		return newErr(KindFrozen, "cannot add field %q to a frozen struct field class", name)
	}
	if child == nil {
		return newErr(KindInvalidArgument, "field %q has a nil field class", name)
	}
	if !isValidIdentifier(name) {
		return newErr(KindInvalidArgument, "field name %q is not a valid identifier", name)
	}
	if _, exists := fc.structIndexByName[name]; exists {
		return newErr(KindDuplicate, "field name %q already present", name)
	}
	fc.structIndexByName[name] = len(fc.structFields)
	fc.structFields = append(fc.structFields, structFieldEntry{Name: name, FC: child})
	if child.alignment > fc.alignment {
		fc.alignment = child.alignment
	}
	return nil
}

// FieldIndexByName returns the index of a named field, or -1 if absent.
func (fc *FieldClass) FieldIndexByName(name string) int {
	if fc.kind != KindFCStruct {
		return -1
	}
	if i, ok := fc.structIndexByName[name]; ok {
		return i
	}
	return -1
}

// FieldCount returns the number of fields of a Struct field class.
func (fc *FieldClass) FieldCount() int {
	if fc.kind != KindFCStruct {
		return 0
	}
	return len(fc.structFields)
}

// FieldByIndex returns the i'th field's name and field class.
func (fc *FieldClass) FieldByIndex(i int) (string, *FieldClass, error) {
	if fc.kind != KindFCStruct {
		return "", nil, newErr(KindBadType, "field_by_index requires a struct field class, got %s", fc.kind)
	}
	if i < 0 || i >= len(fc.structFields) {
		return "", nil, newErr(KindNotFound, "struct field index %d out of range", i)
	}
	e := fc.structFields[i]
	return e.Name, e.FC, nil
}

// NewVariantFieldClass creates a Variant field class whose selector is
// resolved from tagRef, a textual (possibly relative) CTF scope path.
func NewVariantFieldClass(tagRef string) (*FieldClass, error) {
	if tagRef == "" {
		return nil, newErr(KindInvalidArgument, "variant tag reference must not be empty")
	}
	fc := newFieldClass(KindFCVariant)
	fc.variantTagRef = tagRef
	fc.variantTagName = lastPathToken(tagRef)
	fc.variantIndexByLabel = make(map[string]int)
	return fc, nil
}

// NewUntaggedVariantFieldClass creates a Variant field class whose selected
// child is chosen externally (e.g. by the decoding host) rather than via a
// resolved tag field.
func NewUntaggedVariantFieldClass() (*FieldClass, error) {
	fc := newFieldClass(KindFCUntaggedVariant)
	fc.variantIndexByLabel = make(map[string]int)
	return fc, nil
}

func lastPathToken(path string) string {
	last := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			last = path[i+1:]
			break
		}
	}
	return last
}

// AddSelector appends a labeled child to a Variant/UntaggedVariant field
// class.
func (fc *FieldClass) AddSelector(label string, child *FieldClass) error {
	if fc.kind != KindFCVariant && fc.kind != KindFCUntaggedVariant {
		return newErr(KindBadType, "add_selector requires a variant field class, got %s", fc.kind)
	}
	if fc.frozen {
		return newErr(KindFrozen, "cannot add selector %q to a frozen variant field class", label)
	}
	if child == nil {
		return newErr(KindInvalidArgument, "selector %q has a nil field class", label)
	}
	if label == "" {
		return newErr(KindInvalidArgument, "selector label must not be empty")
	}
	if _, exists := fc.variantIndexByLabel[label]; exists {
		return newErr(KindDuplicate, "selector label %q already present", label)
	}
	fc.variantIndexByLabel[label] = len(fc.variantSelectors)
	fc.variantSelectors = append(fc.variantSelectors, variantSelectorEntry{Label: label, FC: child})
	if child.alignment > fc.alignment {
		fc.alignment = child.alignment
	}
	return nil
}

// SelectorCount returns the number of selectors of a Variant field class.
func (fc *FieldClass) SelectorCount() int { return len(fc.variantSelectors) }

// SelectorIndexByLabel returns the index of a labeled selector, or -1.
func (fc *FieldClass) SelectorIndexByLabel(label string) int {
	if i, ok := fc.variantIndexByLabel[label]; ok {
		return i
	}
	return -1
}

// SelectorByIndex returns the i'th selector's label and field class.
func (fc *FieldClass) SelectorByIndex(i int) (string, *FieldClass, error) {
	if fc.kind != KindFCVariant && fc.kind != KindFCUntaggedVariant {
		return "", nil, newErr(KindBadType, "selector_by_index requires a variant field class, got %s", fc.kind)
	}
	if i < 0 || i >= len(fc.variantSelectors) {
		return "", nil, newErr(KindNotFound, "variant selector index %d out of range", i)
	}
	e := fc.variantSelectors[i]
	return e.Label, e.FC, nil
}

// ResolvedTagFieldPath returns the field path the resolver attached to this
// Variant field class, or nil if unresolved.
func (fc *FieldClass) ResolvedTagFieldPath() *FieldPath { return fc.variantResolvedTagPath }

// ResolvedTagFieldClass returns the Enumeration field class the resolver
// attached to this Variant field class, or nil if unresolved.
func (fc *FieldClass) ResolvedTagFieldClass() *FieldClass { return fc.variantResolvedTagFC }

// NewArrayFieldClass creates a fixed-length Array field class.
func NewArrayFieldClass(length uint64, element *FieldClass) (*FieldClass, error) {
	if element == nil {
		return nil, newErr(KindInvalidArgument, "array element field class must not be nil")
	}
	fc := newFieldClass(KindFCArray)
	fc.arrayLength = length
	fc.arrayElement = element
	fc.alignment = element.alignment
	return fc, nil
}

// Length returns the fixed length of an Array field class.
func (fc *FieldClass) Length() uint64 { return fc.arrayLength }

// ElementFieldClass returns the element field class of an Array or Sequence
// field class.
func (fc *FieldClass) ElementFieldClass() *FieldClass {
	switch fc.kind {
	case KindFCArray:
		return fc.arrayElement
	case KindFCSequence:
		return fc.seqElement
	default:
		return nil
	}
}

// NewSequenceFieldClass creates a Sequence field class whose length is
// resolved from lengthFieldName, a textual (possibly relative) CTF scope
// path or environment reference.
func NewSequenceFieldClass(lengthFieldName string, element *FieldClass) (*FieldClass, error) {
	if lengthFieldName == "" {
		return nil, newErr(KindInvalidArgument, "sequence length field reference must not be empty")
	}
	if element == nil {
		return nil, newErr(KindInvalidArgument, "sequence element field class must not be nil")
	}
	fc := newFieldClass(KindFCSequence)
	fc.seqLengthFieldName = lengthFieldName
	fc.seqElement = element
	fc.alignment = element.alignment
	return fc, nil
}

// SequenceLengthFieldName returns the unresolved textual length reference of
// a Sequence field class.
func (fc *FieldClass) SequenceLengthFieldName() string { return fc.seqLengthFieldName }

// ResolvedLengthFieldPath returns the field path the resolver attached to
// this Sequence field class, or nil if unresolved (and not an env constant).
func (fc *FieldClass) ResolvedLengthFieldPath() *FieldPath { return fc.seqResolvedLengthPath }

// ResolvedLengthConstant returns the constant length resolved from an
// environment reference, if any.
func (fc *FieldClass) ResolvedLengthConstant() (uint64, bool) {
	if fc.seqLengthConst == nil {
		return 0, false
	}
	return *fc.seqLengthConst, true
}

// IsResolved reports whether a Sequence or Variant field class has a
// resolved reference (path or, for sequences, constant).
func (fc *FieldClass) IsResolved() bool {
	switch fc.kind {
	case KindFCSequence:
		return fc.seqResolvedLengthPath != nil || fc.seqLengthConst != nil
	case KindFCVariant:
		return fc.variantResolvedTagPath != nil
	default:
		return true
	}
}

// --- Structural algorithms ---------------------------------------------

// Compare performs structural equality modulo frozen state and identity.
// Native byte order is treated as equal to itself but not to a resolved
// concrete order, matching "native is resolved prior to comparison": two
// field classes both still carrying ByteOrderNative compare equal, exactly
// as if both had already been resolved to the same concrete order.
func Compare(a, b *FieldClass) int {
	if a == b {
		return 0
	}
	if a == nil || b == nil {
		return -1
	}
	if a.kind != b.kind {
		return int(a.kind) - int(b.kind)
	}
	switch a.kind {
	case KindFCInteger:
		return compareInteger(a, b)
	case KindFCFloat:
		if a.floatExpDigits != b.floatExpDigits {
			return int(a.floatExpDigits) - int(b.floatExpDigits)
		}
		if a.floatManDigits != b.floatManDigits {
			return int(a.floatManDigits) - int(b.floatManDigits)
		}
		return compareByteOrder(a.floatByteOrder, b.floatByteOrder)
	case KindFCEnumeration:
		if c := Compare(a.enumContainer, b.enumContainer); c != 0 {
			return c
		}
		return compareEnumMappings(a.enumMappings, b.enumMappings)
	case KindFCString:
		return int(a.strEncoding) - int(b.strEncoding)
	case KindFCStruct:
		if len(a.structFields) != len(b.structFields) {
			return len(a.structFields) - len(b.structFields)
		}
		for i := range a.structFields {
			if a.structFields[i].Name != b.structFields[i].Name {
				if a.structFields[i].Name < b.structFields[i].Name {
					return -1
				}
				return 1
			}
			if c := Compare(a.structFields[i].FC, b.structFields[i].FC); c != 0 {
				return c
			}
		}
		return 0
	case KindFCVariant, KindFCUntaggedVariant:
		if len(a.variantSelectors) != len(b.variantSelectors) {
			return len(a.variantSelectors) - len(b.variantSelectors)
		}
		for i := range a.variantSelectors {
			if a.variantSelectors[i].Label != b.variantSelectors[i].Label {
				if a.variantSelectors[i].Label < b.variantSelectors[i].Label {
					return -1
				}
				return 1
			}
			if c := Compare(a.variantSelectors[i].FC, b.variantSelectors[i].FC); c != 0 {
				return c
			}
		}
		return 0
	case KindFCArray:
		if a.arrayLength != b.arrayLength {
			if a.arrayLength < b.arrayLength {
				return -1
			}
			return 1
		}
		return Compare(a.arrayElement, b.arrayElement)
	case KindFCSequence:
		if a.seqLengthFieldName != b.seqLengthFieldName {
			if a.seqLengthFieldName < b.seqLengthFieldName {
				return -1
			}
			return 1
		}
		return Compare(a.seqElement, b.seqElement)
	default:
		return 0
	}
}

func compareInteger(a, b *FieldClass) int {
	if a.intSizeBits != b.intSizeBits {
		return int(a.intSizeBits) - int(b.intSizeBits)
	}
	if a.intSigned != b.intSigned {
		if a.intSigned {
			return 1
		}
		return -1
	}
	if a.intBase != b.intBase {
		return int(a.intBase) - int(b.intBase)
	}
	if a.intEncoding != b.intEncoding {
		return int(a.intEncoding) - int(b.intEncoding)
	}
	return compareByteOrder(a.intByteOrder, b.intByteOrder)
}

func compareByteOrder(a, b ByteOrder) int {
	resolve := func(o ByteOrder) ByteOrder {
		if o == ByteOrderNetwork {
			return ByteOrderBigEndian
		}
		return o
	}
	return int(resolve(a)) - int(resolve(b))
}

func compareEnumMappings(a, b []EnumMapping) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i].Label != b[i].Label {
				if a[i].Label < b[i].Label {
					return -1
				}
				return 1
			}
			if a[i].Begin != b[i].Begin {
				if a[i].Begin < b[i].Begin {
					return -1
				}
				return 1
			}
			if a[i].End < b[i].End {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Copy performs a deep copy of fc. The copy is never frozen and never
// carries resolved references: those are recomputed by the validator on
// reinsertion.
func Copy(fc *FieldClass) *FieldClass {
	if fc == nil {
		return nil
	}
	cp := newFieldClass(fc.kind)
	cp.alignment = fc.alignment
	switch fc.kind {
	case KindFCInteger:
		cp.intSizeBits = fc.intSizeBits
		cp.intSigned = fc.intSigned
		cp.intBase = fc.intBase
		cp.intEncoding = fc.intEncoding
		cp.intByteOrder = fc.intByteOrder
		cp.mappedClock = fc.mappedClock
	case KindFCFloat:
		cp.floatExpDigits = fc.floatExpDigits
		cp.floatManDigits = fc.floatManDigits
		cp.floatByteOrder = fc.floatByteOrder
	case KindFCEnumeration:
		cp.enumContainer = Copy(fc.enumContainer)
		cp.enumMappings = append([]EnumMapping(nil), fc.enumMappings...)
	case KindFCString:
		cp.strEncoding = fc.strEncoding
	case KindFCStruct:
		cp.structIndexByName = make(map[string]int, len(fc.structFields))
		cp.structMinAlign = fc.structMinAlign
		for _, f := range fc.structFields {
			cp.structIndexByName[f.Name] = len(cp.structFields)
			cp.structFields = append(cp.structFields, structFieldEntry{Name: f.Name, FC: Copy(f.FC)})
		}
	case KindFCVariant, KindFCUntaggedVariant:
		cp.variantTagRef = fc.variantTagRef
		cp.variantTagName = fc.variantTagName
		cp.variantIndexByLabel = make(map[string]int, len(fc.variantSelectors))
		for _, s := range fc.variantSelectors {
			cp.variantIndexByLabel[s.Label] = len(cp.variantSelectors)
			cp.variantSelectors = append(cp.variantSelectors, variantSelectorEntry{Label: s.Label, FC: Copy(s.FC)})
		}
	case KindFCArray:
		cp.arrayLength = fc.arrayLength
		cp.arrayElement = Copy(fc.arrayElement)
	case KindFCSequence:
		cp.seqLengthFieldName = fc.seqLengthFieldName
		cp.seqElement = Copy(fc.seqElement)
	}
	return cp
}

// String implements fmt.Stringer for debugging and log output.
func (fc *FieldClass) String() string {
	if fc == nil {
		return "<nil field class>"
	}
	return fmt.Sprintf("FieldClass{kind=%s, alignment=%d, frozen=%t}", fc.kind, fc.alignment, fc.frozen)
}
