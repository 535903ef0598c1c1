// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"fmt"
	"strings"
)

// Scope is one of the six roles a field class plays in a trace.
type Scope int

// The six CTF scopes, in the fixed order the resolver falls back through.
const (
	ScopePacketHeader Scope = iota
	ScopePacketContext
	ScopeEventHeader
	ScopeStreamEventContext
	ScopeEventContext
	ScopeEventPayload
)

func (s Scope) String() string {
	switch s {
	case ScopePacketHeader:
		return "packet_header"
	case ScopePacketContext:
		return "packet_context"
	case ScopeEventHeader:
		return "event_header"
	case ScopeStreamEventContext:
		return "stream_event_context"
	case ScopeEventContext:
		return "event_context"
	case ScopeEventPayload:
		return "event_payload"
	default:
		return "unknown_scope"
	}
}

// scopeOrder fixes the order used for the resolver's relative fallback:
// EventPayload -> EventContext -> StreamEventContext -> EventHeader ->
// PacketContext -> PacketHeader, read backwards from the current scope.
var scopeOrder = []Scope{
	ScopePacketHeader,
	ScopePacketContext,
	ScopeEventHeader,
	ScopeStreamEventContext,
	ScopeEventContext,
	ScopeEventPayload,
}

// FieldPath is an immutable (after construction) structural reference from a
// scope root down to a field class: a root scope plus an ordered list of
// indexes, where -1 denotes "the current element of an array or sequence".
type FieldPath struct {
	Scope   Scope
	Indexes []int32
}

// NewFieldPath builds a field path. indexes is copied defensively.
func NewFieldPath(scope Scope, indexes []int32) *FieldPath {
	return &FieldPath{Scope: scope, Indexes: append([]int32(nil), indexes...)}
}

// Copy returns a deep copy of p.
func (p *FieldPath) Copy() *FieldPath {
	if p == nil {
		return nil
	}
	return NewFieldPath(p.Scope, p.Indexes)
}

// Equal compares scope then indexes element-wise.
func (p *FieldPath) Equal(other *FieldPath) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Scope != other.Scope || len(p.Indexes) != len(other.Indexes) {
		return false
	}
	for i := range p.Indexes {
		if p.Indexes[i] != other.Indexes[i] {
			return false
		}
	}
	return true
}

// String yields the "[scope, i0, i1, ...]" textual form.
func (p *FieldPath) String() string {
	if p == nil {
		return "<nil field path>"
	}
	parts := make([]string, 0, len(p.Indexes)+1)
	parts = append(parts, p.Scope.String())
	for _, idx := range p.Indexes {
		parts = append(parts, fmt.Sprintf("%d", idx))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
