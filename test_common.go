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

//go:build !prod

package sdcard

import (
	"testing"

	"github.com/stretchr/testify/require"

	sdtest "github.com/tessel/sdcard/internal/testing"
)

// newTestCard binds a Card to a virtual card and a virtual detect pin.
// The monitor is not started; tests drive init or Start explicitly.
func newTestCard(t *testing.T, sim *sdtest.VirtualCard) (*Card, *sdtest.VirtualDetectPin) {
	t.Helper()
	pin := sdtest.NewVirtualDetectPin()
	card, err := New(sim, sim, pin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = card.Close() })
	return card, pin
}

// newReadyCard runs the full init handshake against the virtual card and
// returns the card ready for block I/O.
func newReadyCard(t *testing.T, sim *sdtest.VirtualCard) *Card {
	t.Helper()
	card, _ := newTestCard(t, sim)
	require.NoError(t, card.initialize())
	require.True(t, card.Ready())
	return card
}
