//
// Tencent is pleased to support the open source community by making trpc-chat-digest available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-chat-digest is licensed under the Apache License Version 2.0.
//
//

package gateway

import (
	"sync"
	"time"
)

// searchState names the phases of one Complete call. The retry policy
// is branch heavy, keeping it as explicit transitions makes each branch
// testable on its own.
type searchState int

const (
	// stateSelecting picks the credential for the next outer attempt.
	stateSelecting searchState = iota
	// stateTrying walks the model chain against the selected credential.
	stateTrying
	// stateBackoff waits out the jittered delay before the next attempt.
	stateBackoff
	// stateSucceeded ends the search with completion text.
	stateSucceeded
	// stateAborted ends the search with a non-retryable failure.
	stateAborted
)

// String returns the state name for logs.
func (s searchState) String() string {
	switch s {
	case stateSelecting:
		return "selecting-credential"
	case stateTrying:
		return "trying-model"
	case stateBackoff:
		return "backoff"
	case stateSucceeded:
		return "succeeded"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// chainAction is the transition taken after one failed model call.
type chainAction int

const (
	// actionNextModel keeps the credential and tries the next model.
	actionNextModel chainAction = iota
	// actionRotate abandons the model chain and selects another credential.
	actionRotate
	// actionAbort stops the search and surfaces the error unchanged.
	actionAbort
)

// String returns the action name for logs.
func (a chainAction) String() string {
	switch a {
	case actionNextModel:
		return "next-model"
	case actionRotate:
		return "rotate-credential"
	case actionAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// slot tracks the health of one credential.
type slot struct {
	// exhaustedUntil is the deadline after which a quota-exhausted
	// credential rejoins the rotation. The zero value means healthy.
	exhaustedUntil time.Time
	// dead marks an authentication failure, permanent for the process.
	dead bool
}

// usable reports whether the credential may be selected at now.
func (s *slot) usable(now time.Time) bool {
	return !s.dead && !now.Before(s.exhaustedUntil)
}

// rotationState is the credential cursor shared by all Complete calls
// on one gateway. Concurrent calls coordinate through it so a quota hit
// observed by one request steers the others away from that credential.
type rotationState struct {
	mu     sync.Mutex
	cursor int
	slots  []slot
}

func newRotationState(n int) *rotationState {
	// Start the cursor on the last slot so the first selection scans
	// from slot zero.
	return &rotationState{cursor: n - 1, slots: make([]slot, n)}
}

// next advances the cursor to the next usable credential, scanning
// circularly from the slot after the cursor. When every credential is
// exhausted or dead the cursor stays put and ok is false, the caller
// still receives the cursor position for a last-resort attempt.
func (r *rotationState) next(now time.Time) (idx int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.slots)
	for i := 1; i <= n; i++ {
		candidate := (r.cursor + i) % n
		if r.slots[candidate].usable(now) {
			r.cursor = candidate
			return candidate, true
		}
	}
	return r.cursor, false
}

// markExhausted starts the recovery window for the credential at idx.
// A credential whose window is still running is not re-armed, so
// concurrent quota failures never extend the deadline.
func (r *rotationState) markExhausted(idx int, now time.Time, recovery time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &r.slots[idx]
	if s.dead || now.Before(s.exhaustedUntil) {
		return
	}
	s.exhaustedUntil = now.Add(recovery)
}

// markDead removes the credential from rotation for the process lifetime.
func (r *rotationState) markDead(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[idx].dead = true
}

// otherUsable reports whether any credential besides idx is usable.
func (r *rotationState) otherUsable(idx int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if i != idx && r.slots[i].usable(now) {
			return true
		}
	}
	return false
}

// allDead reports whether every credential failed authentication.
func (r *rotationState) allDead() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if !r.slots[i].dead {
			return false
		}
	}
	return true
}
