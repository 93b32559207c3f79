// sdcard
// Copyright (c) 2026 The Tessel Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of sdcard.
//
// sdcard is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// sdcard is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with sdcard; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package sdcard

import "time"

// edgeWaitSlice bounds each WaitForEdge call so the monitor notices Close
// promptly.
const edgeWaitSlice = 100 * time.Millisecond

// Start launches the presence monitor. A card already seated at start is
// treated as a fresh insertion. Event callbacks must be assigned before
// calling Start.
func (c *Card) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	go c.monitor()
	return nil
}

// monitor watches the card-detect line (active low) and drives the
// lifecycle. All events and initialization run on this goroutine, so
// delivery is single-threaded and non-reentrant.
func (c *Card) monitor() {
	defer close(c.done)

	if present := !c.detect.Read(); present {
		c.setPresent(true)
		c.handleInsertion()
	}

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if !c.detect.WaitForEdge(edgeWaitSlice) {
			continue
		}

		present := !c.detect.Read()
		if present == c.Present() {
			// Same-state edge, e.g. contact bounce. Never re-run
			// init for these.
			continue
		}
		c.setPresent(present)

		if present {
			c.handleInsertion()
		} else {
			c.handleRemoval()
		}
	}
}

func (c *Card) setPresent(present bool) {
	c.mu.Lock()
	c.present = present
	c.mu.Unlock()
}

// handleInsertion emits the insertion event and, when a (re)initialization
// is pending, runs the power-up handshake after the settle delay.
func (c *Card) handleInsertion() {
	debugln("card inserted")
	if c.OnInserted != nil {
		c.OnInserted()
	}

	c.mu.Lock()
	pending := c.waiting
	c.waiting = false
	c.mu.Unlock()
	if !pending {
		return
	}

	// Let the card's power-up sequence settle before the first clock.
	select {
	case <-c.stop:
		return
	case <-time.After(c.settle):
	}

	if err := c.initialize(); err != nil {
		c.emitError(err)
	}
}

// handleRemoval clears ready so in-flight clients fail loudly, and arms
// re-initialization for the next insertion.
func (c *Card) handleRemoval() {
	debugln("card removed")

	c.mu.Lock()
	c.ready = false
	c.waiting = true
	c.cardType = CardTypeUnknown
	c.mu.Unlock()

	if c.OnRemoved != nil {
		c.OnRemoved()
	}
}
