// Package core holds the Forwarder and its single-consumer dispatch
// pipeline, together with the structured logging handle and the
// startup configuration record used by mgmt and cmd/lcifwd.
package core

import (
	fwlog "github.com/lci-net/lcifwd/std/log"
)

// Log re-exports the shared structured logger from std/log, so
// existing call sites (and every other package) can keep writing
// core.Log.Warn(...) without each pulling in std/log directly.
var Log = fwlog.Log
