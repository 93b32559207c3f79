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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdtest "github.com/tessel/sdcard/internal/testing"
)

func TestSendCommandR1(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	card, _ := newTestCard(t, sim)

	r1, tail, err := card.sendCommand(cmdGoIdleState, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), r1)
	assert.Nil(t, tail)

	// Exactly one select/deselect cycle on the wire for the command.
	assert.Equal(t, 1, sim.CSCycles())
	assert.False(t, sim.CSLow())
	assert.True(t, sim.CleanDeselectedTraffic())
}

func TestSendCommandR3Tail(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	card, _ := newTestCard(t, sim)

	_, tail, err := card.sendCommand(cmdReadOCR, 0)
	require.NoError(t, err)
	require.Len(t, tail, 4)
	// CCS bit set for the default high-capacity virtual card.
	assert.Equal(t, byte(0x40), tail[0]&0x40)
}

func TestSendCommandAppCmdCycle(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.ReadyAfter = 1
	card, _ := newTestCard(t, sim)

	r1, _, err := card.sendCommand(acmdSendOpCond, 1<<30)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), r1)

	// CSN must be cycled between CMD55 and the application command.
	assert.True(t, sim.SawAppCmdCSCycle())
	assert.Equal(t, 1, sim.AcmdTries())
}

func TestSendCommandR1Error(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.Version1 = true
	card, _ := newTestCard(t, sim)

	_, _, err := card.sendCommand(cmdSendIfCond, 0x1AA)
	var r1Err *R1Error
	require.ErrorAs(t, err, &r1Err)
	assert.Equal(t, "SEND_IF_COND", r1Err.Command)
	assert.True(t, r1Err.IsIllegal())
	assert.Contains(t, r1Err.Error(), "ILLEGAL_COMMAND")

	// The bus is released despite the error.
	assert.False(t, sim.CSLow())
}

func TestSendCommandTimeout(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.Absent = true
	card, _ := newTestCard(t, sim)

	_, _, err := card.sendCommand(cmdGoIdleState, 0)
	require.True(t, IsTimeout(err))

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, DefaultPollBudgets().R1, te.Attempts)
	assert.False(t, sim.CSLow())
}
