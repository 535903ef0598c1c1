// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import "strings"

// scopeRoots holds the six scope-root field classes a resolution context
// may need. Absolute references reach into any of them; relative references
// start from the scope currently being resolved and, failing a match there,
// fall back through the previous scopes, nearest first.
type scopeRoots struct {
	PacketHeader       *FieldClass
	PacketContext      *FieldClass
	EventHeader        *FieldClass
	StreamEventContext *FieldClass
	EventContext       *FieldClass
	EventPayload       *FieldClass
}

func (r scopeRoots) get(scope Scope) *FieldClass {
	switch scope {
	case ScopePacketHeader:
		return r.PacketHeader
	case ScopePacketContext:
		return r.PacketContext
	case ScopeEventHeader:
		return r.EventHeader
	case ScopeStreamEventContext:
		return r.StreamEventContext
	case ScopeEventContext:
		return r.EventContext
	case ScopeEventPayload:
		return r.EventPayload
	default:
		return nil
	}
}

func (r *scopeRoots) set(scope Scope, fc *FieldClass) {
	switch scope {
	case ScopePacketHeader:
		r.PacketHeader = fc
	case ScopePacketContext:
		r.PacketContext = fc
	case ScopeEventHeader:
		r.EventHeader = fc
	case ScopeStreamEventContext:
		r.StreamEventContext = fc
	case ScopeEventContext:
		r.EventContext = fc
	case ScopeEventPayload:
		r.EventPayload = fc
	}
}

// absolutePrefix pairs a textual CTF scope prefix with the scope it roots
// resolution at. Checked in this order, per the resolver's matching rules.
type absolutePrefix struct {
	prefix string
	scope  Scope
}

var absolutePrefixes = []absolutePrefix{
	{"trace.packet.header.", ScopePacketHeader},
	{"stream.packet.context.", ScopePacketContext},
	{"stream.event.header.", ScopeEventHeader},
	{"stream.event.context.", ScopeStreamEventContext},
	{"event.context.", ScopeEventContext},
	{"event.fields.", ScopeEventPayload},
}

const envPrefix = "env."

// resolveFrame is one entry of the visitation stack: the field class being
// descended into, and the index it occupies in its parent (-1 for an
// array/sequence element hop).
type resolveFrame struct {
	fc    *FieldClass
	index int32
}

// resolverContext carries everything resolve_reference needs: the six scope
// roots, the scope presently being resolved, and the visitation stack from
// that scope's root down to the field class under inspection.
type resolverContext struct {
	roots        scopeRoots
	env          map[string]any
	currentScope Scope
	stack        []resolveFrame
}

func tokenize(path string) ([]string, error) {
	tokens := strings.Split(path, ".")
	for _, t := range tokens {
		if t == "" {
			return nil, newErr(KindInvalidArgument, "empty token in path %q", path)
		}
	}
	return tokens, nil
}

// descendTokens walks root through tokens, stepping through struct fields by
// name and variant selectors by label, and transparently hopping through
// array/sequence elements (emitting a -1 index without consuming a token).
func descendTokens(root *FieldClass, tokens []string) ([]int32, *FieldClass, error) {
	if root == nil {
		return nil, nil, newErr(KindUnresolved, "scope root is absent")
	}
	cur := root
	var indexes []int32
	for _, tok := range tokens {
		for cur.Kind() == KindFCArray || cur.Kind() == KindFCSequence {
			indexes = append(indexes, -1)
			cur = cur.ElementFieldClass()
		}
		switch cur.Kind() {
		case KindFCStruct:
			i := cur.FieldIndexByName(tok)
			if i < 0 {
				return nil, nil, newErr(KindNotFound, "struct has no field %q", tok)
			}
			indexes = append(indexes, int32(i))
			_, child, _ := cur.FieldByIndex(i)
			cur = child
		case KindFCVariant, KindFCUntaggedVariant:
			i := cur.SelectorIndexByLabel(tok)
			if i < 0 {
				return nil, nil, newErr(KindNotFound, "variant has no selector %q", tok)
			}
			indexes = append(indexes, int32(i))
			_, child, _ := cur.SelectorByIndex(i)
			cur = child
		default:
			return nil, nil, newErr(KindBadType, "cannot descend into %s field class with remaining token %q", cur.Kind(), tok)
		}
	}
	return indexes, cur, nil
}

// resolved is the outcome of resolving a single textual reference: either a
// concrete field path plus its target field class, or a constant pulled
// from the trace environment (used only as a sequence length).
type resolved struct {
	path     *FieldPath
	target   *FieldClass
	envConst *int64
}

func previousScopes(current Scope) []Scope {
	idx := int(current)
	out := make([]Scope, 0, idx)
	for i := idx - 1; i >= 0; i-- {
		out = append(out, scopeOrder[i])
	}
	return out
}

// resolveReference implements resolve_reference: env. lookups, absolute
// scope-prefixed paths, and relative paths walked outward through the
// visitation stack and then through previous scopes.
func (ctx *resolverContext) resolveReference(pathText string) (*resolved, error) {
	if strings.HasPrefix(pathText, envPrefix) {
		key := pathText[len(envPrefix):]
		if key == "" {
			return nil, newErr(KindInvalidArgument, "empty environment key in %q", pathText)
		}
		val, ok := ctx.env[key]
		if !ok {
			return nil, newErr(KindNotFound, "environment has no entry %q", key)
		}
		n, ok := toInt64(val)
		if !ok {
			return nil, newErr(KindBadType, "environment entry %q is not numeric", key)
		}
		return &resolved{envConst: &n}, nil
	}

	for _, ap := range absolutePrefixes {
		if strings.HasPrefix(pathText, ap.prefix) {
			tokens, err := tokenize(pathText[len(ap.prefix):])
			if err != nil {
				return nil, err
			}
			root := ctx.roots.get(ap.scope)
			if root == nil {
				return nil, newErr(KindUnresolved, "scope %s has no root field class", ap.scope)
			}
			indexes, target, err := descendTokens(root, tokens)
			if err != nil {
				return nil, err
			}
			return &resolved{path: NewFieldPath(ap.scope, indexes), target: target}, nil
		}
	}

	// Relative path: tokenize as-is.
	tokens, err := tokenize(pathText)
	if err != nil {
		return nil, err
	}

	for i := len(ctx.stack) - 1; i >= 0; i-- {
		tailIndexes, target, err := descendTokens(ctx.stack[i].fc, tokens)
		if err != nil {
			continue
		}
		prefix := make([]int32, 0, i)
		for j := 0; j < i; j++ {
			prefix = append(prefix, ctx.stack[j].index)
		}
		full := append(prefix, tailIndexes...)
		return &resolved{path: NewFieldPath(ctx.currentScope, full), target: target}, nil
	}

	for _, sc := range previousScopes(ctx.currentScope) {
		root := ctx.roots.get(sc)
		if root == nil {
			continue
		}
		indexes, target, err := descendTokens(root, tokens)
		if err != nil {
			continue
		}
		return &resolved{path: NewFieldPath(sc, indexes), target: target}, nil
	}

	return nil, newErr(KindNotFound, "could not resolve reference %q", pathText)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// visit walks fc's subtree depth-first, resolving sequence/variant nodes
// before descending into their children, and pushing/popping a visitation
// frame for every compound descent. This ordering matters: a variant's
// resolved tag path must be known before decoding any value that depends on
// it.
func (ctx *resolverContext) visit(fc *FieldClass) error {
	if fc == nil {
		return nil
	}
	switch fc.Kind() {
	case KindFCSequence:
		if err := ctx.resolveSequence(fc); err != nil {
			return err
		}
		ctx.stack = append(ctx.stack, resolveFrame{fc: fc, index: -1})
		err := ctx.visit(fc.ElementFieldClass())
		ctx.stack = ctx.stack[:len(ctx.stack)-1]
		return err

	case KindFCVariant:
		if err := ctx.resolveVariant(fc); err != nil {
			return err
		}
		return ctx.visitSelectors(fc)

	case KindFCUntaggedVariant:
		return ctx.visitSelectors(fc)

	case KindFCStruct:
		for i := 0; i < fc.FieldCount(); i++ {
			_, child, _ := fc.FieldByIndex(i)
			ctx.stack = append(ctx.stack, resolveFrame{fc: fc, index: int32(i)})
			err := ctx.visit(child)
			ctx.stack = ctx.stack[:len(ctx.stack)-1]
			if err != nil {
				return err
			}
		}
		return nil

	case KindFCArray:
		ctx.stack = append(ctx.stack, resolveFrame{fc: fc, index: -1})
		err := ctx.visit(fc.ElementFieldClass())
		ctx.stack = ctx.stack[:len(ctx.stack)-1]
		return err

	default:
		return nil
	}
}

func (ctx *resolverContext) visitSelectors(fc *FieldClass) error {
	for i := 0; i < fc.SelectorCount(); i++ {
		_, child, _ := fc.SelectorByIndex(i)
		ctx.stack = append(ctx.stack, resolveFrame{fc: fc, index: int32(i)})
		err := ctx.visit(child)
		ctx.stack = ctx.stack[:len(ctx.stack)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func (ctx *resolverContext) resolveSequence(fc *FieldClass) error {
	r, err := ctx.resolveReference(fc.seqLengthFieldName)
	if err != nil {
		return err
	}
	if r.envConst != nil {
		n := uint64(*r.envConst)
		fc.seqLengthConst = &n
		fc.seqResolvedLengthPath = nil
		return nil
	}
	if r.target.Kind() != KindFCInteger || r.target.IsSigned() {
		return newErr(KindBadType, "sequence length field %q must resolve to an unsigned integer", fc.seqLengthFieldName)
	}
	fc.seqResolvedLengthPath = r.path
	fc.seqLengthConst = nil
	return nil
}

func (ctx *resolverContext) resolveVariant(fc *FieldClass) error {
	r, err := ctx.resolveReference(fc.variantTagRef)
	if err != nil {
		return err
	}
	if r.envConst != nil {
		return newErr(KindBadType, "variant tag %q must reference a field, not an environment constant", fc.variantTagRef)
	}
	if r.target.Kind() != KindFCEnumeration {
		return newErr(KindBadType, "variant tag %q must reference an enumeration field", fc.variantTagRef)
	}
	for _, sel := range fc.variantSelectors {
		found := false
		for _, m := range r.target.EnumMappings() {
			if m.Label == sel.Label {
				found = true
				break
			}
		}
		if !found {
			return newErr(KindValidationFailed, "variant selector label %q is not a label of its resolved enumeration", sel.Label)
		}
	}
	fc.variantResolvedTagPath = r.path
	fc.variantResolvedTagFC = r.target
	return nil
}
