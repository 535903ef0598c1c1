// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

// validateScopeTree resolves and structurally checks a deep copy of root
// against roots/env, returning the validated copy. The original root is
// left untouched regardless of outcome, so a caller can retry or discard
// freely.
func validateScopeTree(roots scopeRoots, env map[string]any, scope Scope, root *FieldClass) (*FieldClass, error) {
	if root == nil {
		return nil, nil
	}
	cp := Copy(root)
	scoped := roots
	scoped.set(scope, cp)
	ctx := &resolverContext{roots: scoped, env: env, currentScope: scope}
	if err := ctx.visit(cp); err != nil {
		return nil, err
	}
	if err := checkSchemaInvariants(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// checkSchemaInvariants re-checks, defensively, the structural invariants
// that the C2 builder calls already enforce at construction time: unique,
// valid struct field names; integer sizes in [1,64]; float digit counts
// >=1; enumeration containers that are integers.
func checkSchemaInvariants(fc *FieldClass) error {
	if fc == nil {
		return nil
	}
	switch fc.Kind() {
	case KindFCInteger:
		if fc.SizeBits() < 1 || fc.SizeBits() > 64 {
			return newErr(KindValidationFailed, "integer size %d out of range [1,64]", fc.SizeBits())
		}
	case KindFCFloat:
		if fc.floatExpDigits < 1 || fc.floatManDigits < 1 {
			return newErr(KindValidationFailed, "float digit counts must each be >= 1")
		}
	case KindFCEnumeration:
		if fc.EnumContainerFieldClass() == nil || fc.EnumContainerFieldClass().Kind() != KindFCInteger {
			return newErr(KindValidationFailed, "enumeration container must be an integer field class")
		}
		if err := checkSchemaInvariants(fc.EnumContainerFieldClass()); err != nil {
			return err
		}
	case KindFCStruct:
		seen := make(map[string]struct{}, fc.FieldCount())
		for i := 0; i < fc.FieldCount(); i++ {
			name, child, _ := fc.FieldByIndex(i)
			if !isValidIdentifier(name) {
				return newErr(KindValidationFailed, "struct field name %q is not a valid identifier", name)
			}
			if _, dup := seen[name]; dup {
				return newErr(KindValidationFailed, "struct field name %q is duplicated", name)
			}
			seen[name] = struct{}{}
			if fc.FieldIndexByName(name) != i {
				return newErr(KindValidationFailed, "struct field_index_by_name(%q) disagrees with position %d", name, i)
			}
			if err := checkSchemaInvariants(child); err != nil {
				return err
			}
		}
	case KindFCVariant, KindFCUntaggedVariant:
		for i := 0; i < fc.SelectorCount(); i++ {
			_, child, _ := fc.SelectorByIndex(i)
			if err := checkSchemaInvariants(child); err != nil {
				return err
			}
		}
	case KindFCArray:
		if err := checkSchemaInvariants(fc.ElementFieldClass()); err != nil {
			return err
		}
	case KindFCSequence:
		if !fc.IsResolved() {
			return newErr(KindUnresolved, "sequence length reference %q is unresolved", fc.SequenceLengthFieldName())
		}
		if err := checkSchemaInvariants(fc.ElementFieldClass()); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStreamScopes validates a stream class's packet-context,
// event-header and stream-event-context field classes (plus, the first time
// any stream class is added to trace, the trace's packet-header), replacing
// each with a validated, resolved copy. On failure, sc and trace are left
// unmodified.
func ValidateStreamScopes(trace *Trace, sc *StreamClass) error {
	roots := scopeRoots{PacketHeader: trace.packetHeader}

	var newPacketHeader *FieldClass
	if trace.packetHeader != nil && !trace.packetHeaderValidated {
		cp, err := validateScopeTree(roots, trace.environment, ScopePacketHeader, trace.packetHeader)
		if err != nil {
			return newErr(KindValidationFailed, "packet header: %v", err)
		}
		newPacketHeader = cp
		roots.PacketHeader = cp
	}

	pcCopy, err := validateScopeTree(roots, trace.environment, ScopePacketContext, sc.packetContext)
	if err != nil {
		return newErr(KindValidationFailed, "packet context: %v", err)
	}
	ehCopy, err := validateScopeTree(roots, trace.environment, ScopeEventHeader, sc.eventHeader)
	if err != nil {
		return newErr(KindValidationFailed, "event header: %v", err)
	}
	secCopy, err := validateScopeTree(roots, trace.environment, ScopeStreamEventContext, sc.streamEventContext)
	if err != nil {
		return newErr(KindValidationFailed, "stream event context: %v", err)
	}

	if newPacketHeader != nil {
		trace.packetHeader = newPacketHeader
		trace.packetHeaderValidated = true
	}
	sc.packetContext = pcCopy
	sc.eventHeader = ehCopy
	sc.streamEventContext = secCopy
	return nil
}

// ValidateEventScopes validates an event class's context and payload field
// classes against the full, already-validated scope graph of its prospective
// stream class and trace, replacing each with a validated, resolved copy. On
// failure, ec is left unmodified.
func ValidateEventScopes(trace *Trace, sc *StreamClass, ec *EventClass) error {
	roots := scopeRoots{
		PacketHeader:       trace.packetHeader,
		PacketContext:      sc.packetContext,
		EventHeader:        sc.eventHeader,
		StreamEventContext: sc.streamEventContext,
	}

	var ctxCopy *FieldClass
	if ec.context != nil {
		cp, err := validateScopeTree(roots, trace.environment, ScopeEventContext, ec.context)
		if err != nil {
			return newErr(KindValidationFailed, "event context: %v", err)
		}
		ctxCopy = cp
		roots.EventContext = cp
	}

	payloadCopy, err := validateScopeTree(roots, trace.environment, ScopeEventPayload, ec.payload)
	if err != nil {
		return newErr(KindValidationFailed, "event payload: %v", err)
	}

	ec.context = ctxCopy
	ec.payload = payloadCopy
	return nil
}
