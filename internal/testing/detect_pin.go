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

package testing

import (
	"time"

	"github.com/tessel/sdcard/internal/syncutil"
)

// VirtualDetectPin simulates the active-low card-detect line. Create it
// with NewVirtualDetectPin, which starts with the line high (no card).
type VirtualDetectPin struct {
	mu    syncutil.RWMutex
	level bool
	edges chan struct{}
}

// NewVirtualDetectPin returns a detect pin with no card seated.
func NewVirtualDetectPin() *VirtualDetectPin {
	return &VirtualDetectPin{
		level: true,
		edges: make(chan struct{}, 16),
	}
}

// Read returns the current line level. True means no card.
func (p *VirtualDetectPin) Read() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// WaitForEdge blocks for a signalled edge or the timeout. Negative
// timeouts block indefinitely.
func (p *VirtualDetectPin) WaitForEdge(timeout time.Duration) bool {
	if timeout < 0 {
		<-p.edges
		return true
	}
	select {
	case <-p.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Insert drives the line low and signals an edge.
func (p *VirtualDetectPin) Insert() {
	p.set(false)
}

// Remove drives the line high and signals an edge.
func (p *VirtualDetectPin) Remove() {
	p.set(true)
}

// Bounce signals an edge without changing the level, like contact chatter.
func (p *VirtualDetectPin) Bounce() {
	p.edges <- struct{}{}
}

func (p *VirtualDetectPin) set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
	p.edges <- struct{}{}
}
