// Abort coordination
//
// Copyright (C) 2026 railctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package homing

import "sync/atomic"

// AbortFlag is the single cross-context cancellation signal. The
// command layer sets it; the seek loops consult it once per tick, so a
// stop is observed with at most one tick of latency. It is cleared
// only when a new move or homing command begins.
type AbortFlag struct {
	flag atomic.Bool
}

// Set requests cancellation of any in-flight seek.
func (a *AbortFlag) Set() { a.flag.Store(true) }

// Clear arms the flag for a new command.
func (a *AbortFlag) Clear() { a.flag.Store(false) }

// Aborted reports whether cancellation was requested.
func (a *AbortFlag) Aborted() bool { return a.flag.Load() }
