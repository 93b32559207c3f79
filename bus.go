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

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// SPI is the platform SPI peripheral the driver drives. Implementations
// must not touch the chip-select line; the driver owns CSN explicitly.
// The transport/spi package provides a periph.io-backed implementation.
type SPI interface {
	// Tx performs a full-duplex transfer. w and r have equal length;
	// r may be nil when the read half is not needed.
	Tx(w, r []byte) error

	// SetSpeed reconfigures the bus clock. Called once to drop to the
	// identification clock and once to step up after init.
	SetSpeed(f physic.Frequency) error
}

// OutputPin is the chip-select line, driven active-low around each
// transaction.
type OutputPin interface {
	Out(high bool) error
}

// DetectPin is the card-detect line, active-low (reads false while a card
// is seated).
type DetectPin interface {
	Read() bool

	// WaitForEdge blocks until the level changes or the timeout elapses.
	// A negative timeout blocks indefinitely. Returns false on timeout.
	WaitForEdge(timeout time.Duration) bool
}

const (
	// slowClock is the identification-phase clock. The card must be
	// initialized between 100 and 400 kHz.
	slowClock = 200 * physic.KiloHertz

	// fastClock is the steady-state clock after init completes.
	fastClock = 2 * physic.MegaHertz

	// BlockSize is the only transfer unit this driver speaks. CMD16
	// pins byte-addressed v2 cards to it during init.
	BlockSize = 512
)
