// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package walletlink

import "time"

// DefaultCooldown is the transfer gate window.
const DefaultCooldown = 3 * time.Second

// Cooldown gates transfer initiation. Once acquired it stays closed until
// Release or until the window elapses, whichever comes first.
type Cooldown struct {
	window time.Duration
	now    func() time.Time
	until  time.Time
}

// NewCooldown creates a gate with the given window (DefaultCooldown if <= 0).
func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{window: window, now: time.Now}
}

// TryAcquire closes the gate, reporting false if it is already closed.
func (c *Cooldown) TryAcquire() bool {
	now := c.now()
	if now.Before(c.until) {
		return false
	}
	c.until = now.Add(c.window)
	return true
}

// Release opens the gate.
func (c *Cooldown) Release() {
	c.until = time.Time{}
}

// Active reports whether the gate is closed.
func (c *Cooldown) Active() bool {
	return c.now().Before(c.until)
}
