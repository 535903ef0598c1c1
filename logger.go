// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import (
	"os"

	"github.com/go-kratos/kratos/v2/log"
)

// defaultLogger mirrors the core's usual posture: stdout, filtered down to
// warnings and above, so routine packet-by-packet decoding stays quiet while
// schema and medium problems still surface.
func defaultLogger() *log.Helper {
	base := log.NewStdLogger(os.Stdout)
	return log.NewHelper(log.NewFilter(base, log.FilterLevel(log.LevelWarn)))
}

// newLogHelper wraps a caller-supplied logger in a helper as it is, with no
// level filter added, or falls back to defaultLogger when none is supplied.
func newLogHelper(custom log.Logger) *log.Helper {
	if custom == nil {
		return defaultLogger()
	}
	return log.NewHelper(custom)
}
