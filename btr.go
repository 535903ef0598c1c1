// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import "math"

// BTRStatus reports the outcome of one BinaryTypeReader.Continue call.
type BTRStatus int

// Binary type reader statuses.
const (
	BTRStatusOK BTRStatus = iota
	BTRStatusAgain
	BTRStatusEOF
	BTRStatusInvalid
	BTRStatusError
)

// BTRCallbacks receives one notification per field decoded, in the order the
// wire format lays them out. Any non-nil return from a callback aborts
// decoding with BTRStatusError; returning nil for a callback field means
// "not interested", decoding continues without notification.
type BTRCallbacks struct {
	SignedInt      func(fc *FieldClass, v int64) error
	UnsignedInt    func(fc *FieldClass, v uint64) error
	Float          func(fc *FieldClass, v float64) error
	SignedEnum     func(fc *FieldClass, v int64, labels []string) error
	UnsignedEnum   func(fc *FieldClass, v uint64, labels []string) error
	StringBegin    func(fc *FieldClass) error
	StringFragment func(fc *FieldClass, fragment string) error
	StringEnd      func(fc *FieldClass) error
	StructBegin    func(fc *FieldClass) error
	StructEnd      func(fc *FieldClass) error
	ArrayBegin     func(fc *FieldClass) error
	ArrayEnd       func(fc *FieldClass) error
	SequenceBegin  func(fc *FieldClass, length uint64) error
	SequenceEnd    func(fc *FieldClass) error
	VariantBegin   func(fc *FieldClass, selectedLabel string) error
	VariantEnd     func(fc *FieldClass) error

	// GetSequenceLength resolves a sequence's element count when its length
	// field lives outside the subtree currently being decoded (the usual
	// case: length fields live in an already-decoded sibling scope). The
	// resolver's ResolvedLengthFieldPath/ResolvedLengthConstant tell the
	// host where to look.
	GetSequenceLength func(fc *FieldClass) (uint64, error)

	// GetVariantSelector resolves an untagged variant's active selector
	// label, chosen by the host rather than by a resolved enum tag.
	GetVariantSelector func(fc *FieldClass) (string, error)
}

// bitCursor buffers bytes pulled from a Medium and hands them out a
// requested bit count at a time, tracking the partial-byte offset across
// calls so a multi-call decode resumes exactly where it left off.
type bitCursor struct {
	medium Medium
	buf    []byte
	bitOff uint // bits already consumed from buf[0]

	consumedBytes uint64 // whole bytes fully consumed and dropped from buf
}

// fill ensures at least nBits are buffered, pulling more bytes from the
// medium as needed. Returns BTRStatusAgain/EOF/Error when it cannot.
func (c *bitCursor) fill(nBits uint) BTRStatus {
	haveBits := uint(len(c.buf))*8 - c.bitOff
	for haveBits < nBits {
		need := (nBits - haveBits + 7) / 8
		chunk, status := c.medium.RequestBytes(int(need))
		c.buf = append(c.buf, chunk...)
		haveBits = uint(len(c.buf))*8 - c.bitOff
		switch status {
		case MediumStatusOK:
			continue
		case MediumStatusAgain:
			if haveBits >= nBits {
				return BTRStatusOK
			}
			return BTRStatusAgain
		case MediumStatusEOF:
			if haveBits >= nBits {
				return BTRStatusOK
			}
			return BTRStatusEOF
		default:
			return BTRStatusError
		}
	}
	return BTRStatusOK
}

// takeBits consumes and returns the next nBits (<=64) as the low bits of a
// uint64, assembled most-significant-bit-first. Caller must have already
// confirmed availability via fill.
func (c *bitCursor) takeBits(nBits uint) uint64 {
	var v uint64
	remaining := nBits
	for remaining > 0 {
		avail := 8 - c.bitOff
		take := avail
		if take > remaining {
			take = remaining
		}
		shift := avail - take
		mask := byte((1 << take) - 1)
		bits := (c.buf[0] >> shift) & mask
		v = (v << take) | uint64(bits)
		c.bitOff += take
		remaining -= take
		if c.bitOff == 8 {
			c.buf = c.buf[1:]
			c.bitOff = 0
			c.consumedBytes++
		}
	}
	return v
}

// alignToByte discards any partially consumed bits, advancing to the next
// byte boundary. CTF fields with byte-multiple alignment (the common case)
// call this before decoding.
func (c *bitCursor) alignToByte() {
	if c.bitOff != 0 {
		c.buf = c.buf[1:]
		c.bitOff = 0
		c.consumedBytes++
	}
}

// btrFrameKind distinguishes the handful of stack frame shapes the reader
// juggles; most leaf kinds never need a frame at all.
type btrFrameKind int

const (
	frameStruct btrFrameKind = iota
	frameArray
	frameSequence
	frameVariant
	frameString
)

type btrFrame struct {
	kind btrFrameKind
	fc   *FieldClass
	fv   *FieldValue
	idx  int
	n    int // element/field count for struct/array/sequence
	sb   []byte // accumulated string bytes, for frameString
}

// BinaryTypeReader decodes one field value's worth of binary data against a
// field class, driving an explicit frame stack rather than Go's call stack
// so that decoding can suspend on BTRStatusAgain and resume later with
// exactly the state it left off in.
type BinaryTypeReader struct {
	bits      bitCursor
	cb        *BTRCallbacks
	stack     []btrFrame
	root      *FieldValue
	started   bool
}

// NewBinaryTypeReader creates a reader pulling from medium and notifying cb.
func NewBinaryTypeReader(medium Medium, cb *BTRCallbacks) *BinaryTypeReader {
	if cb == nil {
		cb = &BTRCallbacks{}
	}
	return &BinaryTypeReader{bits: bitCursor{medium: medium}, cb: cb}
}

// ConsumedBytes returns the number of whole bytes fully consumed from the
// medium so far by this reader, across every DecodeField/Continue call since
// the reader (or its underlying medium position) was last reset. A partially
// consumed trailing byte, still pending more bits, is not counted until it is
// either finished or discarded by alignment.
func (r *BinaryTypeReader) ConsumedBytes() uint64 { return r.bits.consumedBytes }

// DecodeField begins decoding a field value shaped by fc, returning the
// first of BTRStatusOK (decoding completed entirely within this call),
// BTRStatusAgain (call Continue once more data may be available),
// BTRStatusEOF, BTRStatusInvalid or BTRStatusError.
func (r *BinaryTypeReader) DecodeField(fc *FieldClass) (*FieldValue, BTRStatus) {
	fv, err := CreateFieldValue(fc)
	if err != nil {
		return nil, BTRStatusInvalid
	}
	r.root = fv
	r.stack = nil
	r.started = true
	status := r.push(fc, fv)
	if status != BTRStatusOK {
		return nil, status
	}
	return r.root, r.Continue()
}

// Continue resumes decoding after a previous DecodeField or Continue call
// returned BTRStatusAgain.
func (r *BinaryTypeReader) Continue() BTRStatus {
	if !r.started {
		return BTRStatusError
	}
	if len(r.stack) == 0 && r.root != nil && !r.root.assigned {
		switch r.root.kind {
		case KindFCInteger, KindFCFloat, KindFCEnumeration:
			// A scalar root that returned Again from DecodeField has no frame.
			return r.push(r.root.fc, r.root)
		}
	}
	for len(r.stack) > 0 {
		top := &r.stack[len(r.stack)-1]
		idx := top.idx
		status := r.step(top)
		if status == BTRStatusAgain {
			// The child that ran short is retried on the next Continue.
			top.idx = idx
		}
		if status != BTRStatusOK {
			return status
		}
	}
	return BTRStatusOK
}

// push installs a new top-of-stack frame for fc/fv, or decodes fc inline and
// advances the parent's progress if fc is a leaf kind needing no frame.
func (r *BinaryTypeReader) push(fc *FieldClass, fv *FieldValue) BTRStatus {
	switch fc.Kind() {
	case KindFCStruct:
		r.stack = append(r.stack, btrFrame{kind: frameStruct, fc: fc, fv: fv, n: fc.FieldCount()})
		if r.cb.StructBegin != nil {
			if err := r.cb.StructBegin(fc); err != nil {
				return BTRStatusError
			}
		}
		return BTRStatusOK
	case KindFCArray:
		r.stack = append(r.stack, btrFrame{kind: frameArray, fc: fc, fv: fv, n: int(fc.Length())})
		if r.cb.ArrayBegin != nil {
			if err := r.cb.ArrayBegin(fc); err != nil {
				return BTRStatusError
			}
		}
		return BTRStatusOK
	case KindFCSequence:
		length, status := r.resolveSequenceLength(fc, fv)
		if status != BTRStatusOK {
			return status
		}
		if err := fv.SetLength(length); err != nil {
			return BTRStatusInvalid
		}
		r.stack = append(r.stack, btrFrame{kind: frameSequence, fc: fc, fv: fv, n: int(length)})
		if r.cb.SequenceBegin != nil {
			if err := r.cb.SequenceBegin(fc, length); err != nil {
				return BTRStatusError
			}
		}
		return BTRStatusOK
	case KindFCVariant, KindFCUntaggedVariant:
		label, status := r.resolveVariantSelector(fc, fv)
		if status != BTRStatusOK {
			return status
		}
		if err := fv.SetTag(label); err != nil {
			return BTRStatusInvalid
		}
		r.stack = append(r.stack, btrFrame{kind: frameVariant, fc: fc, fv: fv, n: 1})
		if r.cb.VariantBegin != nil {
			if err := r.cb.VariantBegin(fc, label); err != nil {
				return BTRStatusError
			}
		}
		return BTRStatusOK
	case KindFCString:
		r.stack = append(r.stack, btrFrame{kind: frameString, fc: fc, fv: fv})
		if r.cb.StringBegin != nil {
			if err := r.cb.StringBegin(fc); err != nil {
				return BTRStatusError
			}
		}
		return BTRStatusOK
	default:
		return r.decodeScalarInto(fc, fv)
	}
}

// step advances the frame at the top of the stack by exactly one unit of
// work: one struct field, one array/sequence element, the variant's single
// child, or one pending byte of a string.
func (r *BinaryTypeReader) step(f *btrFrame) BTRStatus {
	switch f.kind {
	case frameStruct:
		if f.idx == f.n {
			r.stack = r.stack[:len(r.stack)-1]
			if r.cb.StructEnd != nil {
				if err := r.cb.StructEnd(f.fc); err != nil {
					return BTRStatusError
				}
			}
			return BTRStatusOK
		}
		_, childFC, _ := f.fc.FieldByIndex(f.idx)
		childFV, _ := f.fv.GetFieldByIndex(f.idx)
		f.idx++
		return r.push(childFC, childFV)

	case frameArray:
		if f.idx == f.n {
			r.stack = r.stack[:len(r.stack)-1]
			if r.cb.ArrayEnd != nil {
				if err := r.cb.ArrayEnd(f.fc); err != nil {
					return BTRStatusError
				}
			}
			return BTRStatusOK
		}
		childFV, _ := f.fv.GetElementByIndex(f.idx)
		f.idx++
		return r.push(f.fc.ElementFieldClass(), childFV)

	case frameSequence:
		if f.idx == f.n {
			r.stack = r.stack[:len(r.stack)-1]
			if r.cb.SequenceEnd != nil {
				if err := r.cb.SequenceEnd(f.fc); err != nil {
					return BTRStatusError
				}
			}
			return BTRStatusOK
		}
		childFV, _ := f.fv.GetElementByIndex(f.idx)
		f.idx++
		return r.push(f.fc.ElementFieldClass(), childFV)

	case frameVariant:
		if f.idx == f.n {
			r.stack = r.stack[:len(r.stack)-1]
			if r.cb.VariantEnd != nil {
				if err := r.cb.VariantEnd(f.fc); err != nil {
					return BTRStatusError
				}
			}
			return BTRStatusOK
		}
		f.idx++
		child, _ := f.fv.SelectedField()
		_, childFC, _ := f.fc.SelectorByIndex(f.fv.variantTag)
		return r.push(childFC, child)

	case frameString:
		r.bits.alignToByte()
		status := r.bits.fill(8)
		if status != BTRStatusOK {
			if status == BTRStatusEOF {
				return BTRStatusInvalid // string never terminated
			}
			return status
		}
		b := byte(r.bits.takeBits(8))
		if b == 0 {
			if err := f.fv.SetString(string(f.sb)); err != nil {
				return BTRStatusError
			}
			r.stack = r.stack[:len(r.stack)-1]
			if r.cb.StringEnd != nil {
				if err := r.cb.StringEnd(f.fc); err != nil {
					return BTRStatusError
				}
			}
			return BTRStatusOK
		}
		f.sb = append(f.sb, b)
		if r.cb.StringFragment != nil {
			if err := r.cb.StringFragment(f.fc, string(b)); err != nil {
				return BTRStatusError
			}
		}
		return BTRStatusOK

	default:
		return BTRStatusError
	}
}

// decodeScalarInto decodes an Integer, Float or Enumeration field class,
// which never needs a stack frame of its own since it consumes a fixed,
// known bit count in one shot.
func (r *BinaryTypeReader) decodeScalarInto(fc *FieldClass, fv *FieldValue) BTRStatus {
	switch fc.Kind() {
	case KindFCInteger:
		return r.decodeInteger(fc, fv)
	case KindFCEnumeration:
		return r.decodeEnumeration(fc, fv)
	case KindFCFloat:
		return r.decodeFloat(fc, fv)
	default:
		return BTRStatusInvalid
	}
}

func (r *BinaryTypeReader) decodeInteger(fc *FieldClass, fv *FieldValue) BTRStatus {
	if fc.Alignment()%8 == 0 {
		r.bits.alignToByte()
	}
	nBits := uint(fc.SizeBits())
	status := r.bits.fill(nBits)
	if status != BTRStatusOK {
		return status
	}
	raw := r.bits.takeBits(nBits)
	if fc.ByteOrder() == ByteOrderBigEndian || fc.ByteOrder() == ByteOrderNetwork {
		// Bits were assembled MSB-first already; nothing further to do for
		// big endian. Little endian multi-byte integers are byte-swapped
		// below when the field is byte-aligned and multi-byte.
	} else if fc.ByteOrder() == ByteOrderLittleEndian && nBits%8 == 0 && nBits > 8 {
		raw = swapBytesUint64(raw, int(nBits/8))
	}
	if fc.IsSigned() {
		v := signExtend(raw, nBits)
		if r.cb.SignedInt != nil {
			if err := r.cb.SignedInt(fc, v); err != nil {
				return BTRStatusError
			}
		}
		if err := fv.SetSigned(v); err != nil {
			return BTRStatusInvalid
		}
	} else {
		if r.cb.UnsignedInt != nil {
			if err := r.cb.UnsignedInt(fc, raw); err != nil {
				return BTRStatusError
			}
		}
		if err := fv.SetUnsigned(raw); err != nil {
			return BTRStatusInvalid
		}
	}
	return BTRStatusOK
}

func (r *BinaryTypeReader) decodeEnumeration(fc *FieldClass, fv *FieldValue) BTRStatus {
	container := fc.EnumContainerFieldClass()
	containerFV, err := CreateFieldValue(container)
	if err != nil {
		return BTRStatusInvalid
	}
	status := r.decodeInteger(container, containerFV)
	if status != BTRStatusOK {
		return status
	}
	if fc.IsSigned() {
		v, _ := containerFV.Signed()
		if err := fv.SetSigned(v); err != nil {
			return BTRStatusInvalid
		}
		if r.cb.SignedEnum != nil {
			labels, _ := fv.Labels()
			if err := r.cb.SignedEnum(fc, v, labels); err != nil {
				return BTRStatusError
			}
		}
	} else {
		v, _ := containerFV.Unsigned()
		if err := fv.SetUnsigned(v); err != nil {
			return BTRStatusInvalid
		}
		if r.cb.UnsignedEnum != nil {
			labels, _ := fv.Labels()
			if err := r.cb.UnsignedEnum(fc, v, labels); err != nil {
				return BTRStatusError
			}
		}
	}
	return BTRStatusOK
}

func (r *BinaryTypeReader) decodeFloat(fc *FieldClass, fv *FieldValue) BTRStatus {
	r.bits.alignToByte()
	nBits := uint(fc.SizeBits())
	status := r.bits.fill(nBits)
	if status != BTRStatusOK {
		return status
	}
	raw := r.bits.takeBits(nBits)
	if fc.ByteOrder() == ByteOrderLittleEndian && nBits%8 == 0 {
		raw = swapBytesUint64(raw, int(nBits/8))
	}
	var v float64
	switch nBits {
	case 32:
		v = float64(math.Float32frombits(uint32(raw)))
	case 64:
		v = math.Float64frombits(raw)
	default:
		return BTRStatusInvalid
	}
	if r.cb.Float != nil {
		if err := r.cb.Float(fc, v); err != nil {
			return BTRStatusError
		}
	}
	if err := fv.SetFloat(v); err != nil {
		return BTRStatusInvalid
	}
	return BTRStatusOK
}

// resolveFieldByPath walks path from this reader's decode root, the usual
// shape of a reference to an already-decoded sibling within the same struct
// currently being decoded. It reports (nil, false) for a path that hops
// through an array/sequence element (a negative index, deliberately left
// unsupported here) or that does not fit the root's structure at all, in
// which case the caller falls back to asking the host.
func (r *BinaryTypeReader) resolveFieldByPath(path *FieldPath) (*FieldValue, bool) {
	if path == nil || r.root == nil {
		return nil, false
	}
	cur := r.root
	for _, idx := range path.Indexes {
		if idx < 0 {
			return nil, false
		}
		next, err := cur.GetFieldByIndex(int(idx))
		if err != nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func (r *BinaryTypeReader) resolveSequenceLength(fc *FieldClass, _ *FieldValue) (uint64, BTRStatus) {
	if n, ok := fc.ResolvedLengthConstant(); ok {
		return n, BTRStatusOK
	}
	if lenFV, ok := r.resolveFieldByPath(fc.ResolvedLengthFieldPath()); ok {
		n, err := lenFV.Unsigned()
		if err == nil {
			return n, BTRStatusOK
		}
	}
	if r.cb.GetSequenceLength == nil {
		return 0, BTRStatusInvalid
	}
	n, err := r.cb.GetSequenceLength(fc)
	if err != nil {
		return 0, BTRStatusError
	}
	return n, BTRStatusOK
}

func (r *BinaryTypeReader) resolveVariantSelector(fc *FieldClass, _ *FieldValue) (string, BTRStatus) {
	if fc.Kind() == KindFCVariant {
		if tagFV, ok := r.resolveFieldByPath(fc.ResolvedTagFieldPath()); ok {
			if labels, err := tagFV.Labels(); err == nil && len(labels) > 0 {
				return labels[0], BTRStatusOK
			}
		}
	}
	if r.cb.GetVariantSelector == nil {
		return "", BTRStatusInvalid
	}
	label, err := r.cb.GetVariantSelector(fc)
	if err != nil {
		return "", BTRStatusError
	}
	return label, BTRStatusOK
}

func signExtend(raw uint64, nBits uint) int64 {
	if nBits >= 64 {
		return int64(raw)
	}
	shift := 64 - nBits
	return int64(raw<<shift) >> shift
}

func swapBytesUint64(v uint64, nBytes int) uint64 {
	b := make([]byte, nBytes)
	for i := 0; i < nBytes; i++ {
		b[i] = byte(v >> (uint(nBytes-1-i) * 8))
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	var out uint64
	for i := 0; i < nBytes; i++ {
		out = (out << 8) | uint64(b[i])
	}
	return out
}

