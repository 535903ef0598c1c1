// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import "encoding/json"

// This file bridges a JSON document to a Trace graph built entirely from
// the C2/C6 builder calls. It is deliberately not a TSDL (the textual CTF
// metadata grammar) parser: TSDL parsing belongs to a higher layer that
// would sit on top of this package, the way a config loader sits on top of
// a plain struct. The bridge exists so tests and tools can describe a
// schema declaratively instead of chaining dozens of builder calls.

type jsonFieldClass struct {
	Kind      string            `json:"kind"`
	Size      uint8             `json:"size,omitempty"`
	Signed    bool              `json:"signed,omitempty"`
	Base      string            `json:"base,omitempty"`
	Encoding  string            `json:"encoding,omitempty"`
	ByteOrder string            `json:"byte_order,omitempty"`
	ExpDigits uint8             `json:"exponent_digits,omitempty"`
	ManDigits uint8             `json:"mantissa_digits,omitempty"`
	Container *jsonFieldClass   `json:"container,omitempty"`
	Mappings  []jsonEnumMapping `json:"mappings,omitempty"`
	Fields    []jsonStructField `json:"fields,omitempty"`
	MinAlign  uint32            `json:"minimum_alignment,omitempty"`
	Tag       string            `json:"tag,omitempty"`
	Selectors []jsonSelector    `json:"selectors,omitempty"`
	Length    uint64            `json:"length,omitempty"`
	LengthRef string            `json:"length_ref,omitempty"`
	Element   *jsonFieldClass   `json:"element,omitempty"`
}

type jsonEnumMapping struct {
	Label string `json:"label"`
	Begin int64  `json:"begin"`
	End   int64  `json:"end"`
}

type jsonStructField struct {
	Name       string         `json:"name"`
	FieldClass jsonFieldClass `json:"field_class"`
}

type jsonSelector struct {
	Label      string         `json:"label"`
	FieldClass jsonFieldClass `json:"field_class"`
}

func parseByteOrder(s string) ByteOrder {
	switch s {
	case "big_endian":
		return ByteOrderBigEndian
	case "network":
		return ByteOrderNetwork
	case "little_endian":
		return ByteOrderLittleEndian
	default:
		return ByteOrderNative
	}
}

func parseBase(s string) IntegerBase {
	switch s {
	case "binary":
		return BaseBinary
	case "octal":
		return BaseOctal
	case "hexadecimal":
		return BaseHexadecimal
	default:
		return BaseDecimal
	}
}

func parseEncoding(s string) Encoding {
	switch s {
	case "utf8":
		return EncodingUTF8
	case "ascii":
		return EncodingASCII
	default:
		return EncodingNone
	}
}

// buildFieldClass recursively translates one JSON field class node into a
// live FieldClass built through the exported C2 constructors, so the
// resulting graph is indistinguishable from one built by direct API calls.
func buildFieldClass(j *jsonFieldClass) (*FieldClass, error) {
	if j == nil {
		return nil, nil
	}
	switch j.Kind {
	case "integer":
		return NewIntegerFieldClass(j.Size, j.Signed, parseBase(j.Base), parseEncoding(j.Encoding), parseByteOrder(j.ByteOrder))
	case "float":
		return NewFloatFieldClass(j.ExpDigits, j.ManDigits, parseByteOrder(j.ByteOrder))
	case "enumeration":
		container, err := buildFieldClass(j.Container)
		if err != nil {
			return nil, err
		}
		fc, err := NewEnumerationFieldClass(container)
		if err != nil {
			return nil, err
		}
		for _, m := range j.Mappings {
			if err := fc.AddMapping(m.Label, m.Begin, m.End); err != nil {
				return nil, err
			}
		}
		return fc, nil
	case "string":
		return NewStringFieldClass(parseEncoding(j.Encoding))
	case "struct":
		fc, err := NewStructFieldClass(j.MinAlign)
		if err != nil {
			return nil, err
		}
		for _, f := range j.Fields {
			child, err := buildFieldClass(&f.FieldClass)
			if err != nil {
				return nil, err
			}
			if err := fc.AddField(f.Name, child); err != nil {
				return nil, err
			}
		}
		return fc, nil
	case "variant":
		fc, err := NewVariantFieldClass(j.Tag)
		if err != nil {
			return nil, err
		}
		for _, s := range j.Selectors {
			child, err := buildFieldClass(&s.FieldClass)
			if err != nil {
				return nil, err
			}
			if err := fc.AddSelector(s.Label, child); err != nil {
				return nil, err
			}
		}
		return fc, nil
	case "untagged_variant":
		fc, err := NewUntaggedVariantFieldClass()
		if err != nil {
			return nil, err
		}
		for _, s := range j.Selectors {
			child, err := buildFieldClass(&s.FieldClass)
			if err != nil {
				return nil, err
			}
			if err := fc.AddSelector(s.Label, child); err != nil {
				return nil, err
			}
		}
		return fc, nil
	case "array":
		element, err := buildFieldClass(j.Element)
		if err != nil {
			return nil, err
		}
		return NewArrayFieldClass(j.Length, element)
	case "sequence":
		element, err := buildFieldClass(j.Element)
		if err != nil {
			return nil, err
		}
		return NewSequenceFieldClass(j.LengthRef, element)
	default:
		return nil, newErr(KindInvalidArgument, "unknown field class kind %q", j.Kind)
	}
}

type jsonClockClass struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UUID        string `json:"uuid,omitempty"`
	Frequency   uint64 `json:"frequency"`
	Precision   uint64 `json:"precision,omitempty"`
	OffsetSec   int64  `json:"offset_seconds,omitempty"`
	OffsetCyc   uint64 `json:"offset_cycles,omitempty"`
	IsAbsolute  bool   `json:"is_absolute,omitempty"`
}

type jsonEventClass struct {
	ID       *int64          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
	LogLevel *int            `json:"loglevel,omitempty"`
	EMFURI   string          `json:"model.emf.uri,omitempty"`
	Context  *jsonFieldClass `json:"context,omitempty"`
	Payload  *jsonFieldClass `json:"payload,omitempty"`
}

type jsonStreamClass struct {
	ID                 *int64           `json:"id,omitempty"`
	Name               string           `json:"name,omitempty"`
	PacketContext      *jsonFieldClass  `json:"packet_context,omitempty"`
	EventHeader        *jsonFieldClass  `json:"event_header,omitempty"`
	StreamEventContext *jsonFieldClass  `json:"stream_event_context,omitempty"`
	DefaultClockClass  string           `json:"default_clock_class,omitempty"`
	EventClasses       []jsonEventClass `json:"event_classes,omitempty"`
}

type jsonTrace struct {
	Name          string                 `json:"name,omitempty"`
	UUID          string                 `json:"uuid,omitempty"`
	Environment   map[string]any         `json:"environment,omitempty"`
	ClockClasses  []jsonClockClass       `json:"clock_classes,omitempty"`
	PacketHeader  *jsonFieldClass        `json:"packet_header,omitempty"`
	StreamClasses []jsonStreamClass      `json:"stream_classes,omitempty"`
}

// BuildFromJSON builds a complete, validated Trace graph from a JSON
// document shaped like jsonTrace. Every field class is constructed through
// the ordinary C2 builder calls and every stream/event class addition runs
// through ValidateStreamScopes/ValidateEventScopes exactly as if the caller
// had built the graph by hand, so a schema round-tripped through JSON
// behaves identically to one assembled directly.
func BuildFromJSON(data []byte) (*Trace, error) {
	var doc jsonTrace
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, newErr(KindInvalidArgument, "invalid JSON schema document: %v", err)
	}

	trace := NewTrace(doc.Name)
	if doc.UUID != "" {
		if err := trace.SetUUID(doc.UUID); err != nil {
			return nil, err
		}
	}
	for k, v := range doc.Environment {
		if err := trace.SetEnvironmentEntry(k, v); err != nil {
			return nil, err
		}
	}
	for _, jcc := range doc.ClockClasses {
		cc, err := NewClockClass(jcc.Name, jcc.Frequency)
		if err != nil {
			return nil, err
		}
		if jcc.Description != "" {
			if err := cc.SetDescription(jcc.Description); err != nil {
				return nil, err
			}
		}
		if jcc.UUID != "" {
			if err := cc.SetUUID(jcc.UUID); err != nil {
				return nil, err
			}
		}
		if err := cc.SetPrecision(jcc.Precision); err != nil {
			return nil, err
		}
		if err := cc.SetOffset(jcc.OffsetSec, jcc.OffsetCyc); err != nil {
			return nil, err
		}
		if err := cc.SetIsAbsolute(jcc.IsAbsolute); err != nil {
			return nil, err
		}
		if err := trace.AddClockClass(cc); err != nil {
			return nil, err
		}
	}

	packetHeader, err := buildFieldClass(doc.PacketHeader)
	if err != nil {
		return nil, err
	}
	if err := trace.SetPacketHeaderFieldClass(packetHeader); err != nil {
		return nil, err
	}

	for _, jsc := range doc.StreamClasses {
		sc := NewStreamClass()
		if jsc.Name != "" {
			if err := sc.SetName(jsc.Name); err != nil {
				return nil, err
			}
		}
		if jsc.ID != nil {
			if err := sc.SetID(*jsc.ID); err != nil {
				return nil, err
			}
		}
		pc, err := buildFieldClass(jsc.PacketContext)
		if err != nil {
			return nil, err
		}
		if err := sc.SetPacketContextFieldClass(pc); err != nil {
			return nil, err
		}
		eh, err := buildFieldClass(jsc.EventHeader)
		if err != nil {
			return nil, err
		}
		if err := sc.SetEventHeaderFieldClass(eh); err != nil {
			return nil, err
		}
		sec, err := buildFieldClass(jsc.StreamEventContext)
		if err != nil {
			return nil, err
		}
		if err := sc.SetEventContextFieldClass(sec); err != nil {
			return nil, err
		}
		if jsc.DefaultClockClass != "" {
			cc := trace.ClockClassByName(jsc.DefaultClockClass)
			if cc == nil {
				return nil, newErr(KindNotFound, "stream class references unknown clock class %q", jsc.DefaultClockClass)
			}
			if err := sc.SetDefaultClockClass(cc); err != nil {
				return nil, err
			}
		}

		if err := trace.AddStreamClass(sc); err != nil {
			return nil, err
		}

		for _, jec := range jsc.EventClasses {
			ec := NewEventClass(jec.Name)
			if jec.ID != nil {
				if err := ec.SetID(*jec.ID); err != nil {
					return nil, err
				}
			}
			if jec.LogLevel != nil {
				if err := ec.SetLogLevel(LogLevel(*jec.LogLevel)); err != nil {
					return nil, err
				}
			}
			if jec.EMFURI != "" {
				if err := ec.SetEMFURI(jec.EMFURI); err != nil {
					return nil, err
				}
			}
			ctxFC, err := buildFieldClass(jec.Context)
			if err != nil {
				return nil, err
			}
			if err := ec.SetContextFieldClass(ctxFC); err != nil {
				return nil, err
			}
			payloadFC, err := buildFieldClass(jec.Payload)
			if err != nil {
				return nil, err
			}
			if err := ec.SetPayloadFieldClass(payloadFC); err != nil {
				return nil, err
			}
			if err := sc.AddEventClass(trace, ec); err != nil {
				return nil, err
			}
		}
	}

	return trace, nil
}
