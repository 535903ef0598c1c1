// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

// DebugInfoResolver is an external collaborator a decoding host may supply
// to enrich events with source-level debug information (binary/library
// lookup by instruction pointer and build ID). Nothing in this package calls
// or stores it: it is named here purely so a downstream plugin can wire its
// own implementation in without this core depending on how that resolution
// is actually done.
type DebugInfoResolver interface {
	// ResolveBinaryPath returns the on-disk path of the binary or library
	// that contains the given instruction pointer for the process
	// identified by vpid, or ("", false) if it cannot be resolved.
	ResolveBinaryPath(vpid int64, ip uint64) (path string, ok bool)

	// ResolveBuildID returns the build ID of the binary located by a prior
	// ResolveBinaryPath call, or ("", false) if unavailable.
	ResolveBuildID(path string) (buildID string, ok bool)
}
