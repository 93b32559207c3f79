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

func patternBlock() []byte {
	data := make([]byte, BlockSize)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	card := newReadyCard(t, sim)

	data := patternBlock()
	require.NoError(t, card.WriteBlock(1234, data))

	got, err := card.ReadBlock(1234)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.False(t, sim.CSLow())
}

func TestReadBlockTwiceEqual(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.SetBlock(7, patternBlock())
	card := newReadyCard(t, sim)

	first, err := card.ReadBlock(7)
	require.NoError(t, err)
	second, err := card.ReadBlock(7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReadBlockZero(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.SetBlock(0, patternBlock())
	sim.TokenDelay = 3
	card := newReadyCard(t, sim)

	got, err := card.ReadBlock(0)
	require.NoError(t, err)
	assert.Equal(t, patternBlock(), got)
}

func TestReadBlockChecksumError(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.SetBlock(5, patternBlock())
	sim.CorruptRead = true
	card := newReadyCard(t, sim)

	_, err := card.ReadBlock(5)
	require.ErrorIs(t, err, ErrChecksum)

	// The bus is released on the error path.
	assert.False(t, sim.CSLow())
}

func TestReadBlockErrorToken(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.ReadErrorToken = 0x09
	card := newReadyCard(t, sim)

	_, err := card.ReadBlock(1)
	require.ErrorIs(t, err, ErrReadFailed)

	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, byte(0x09), de.Token)
}

func TestWriteBlockRejected(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		response byte
	}{
		{"crc rejected", 0x0B},
		{"write error", 0x0D},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sim := sdtest.NewVirtualCard()
			sim.WriteResponse = tt.response
			card := newReadyCard(t, sim)

			err := card.WriteBlock(1, patternBlock())
			require.ErrorIs(t, err, ErrWriteRejected)

			var de *DataError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.response, de.Token)
		})
	}
}

func TestWriteBlockBusyTimeout(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.StayBusy = true
	card := newReadyCard(t, sim)

	err := card.WriteBlock(1, patternBlock())
	require.True(t, IsTimeout(err))
	assert.False(t, sim.CSLow())
}

func TestWriteBlockBusyWait(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.BusyBytes = 5
	card := newReadyCard(t, sim)

	require.NoError(t, card.WriteBlock(2, patternBlock()))
	assert.Equal(t, patternBlock(), sim.Block(2))
}

func TestWriteBlockWrongSize(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	card := newReadyCard(t, sim)

	before := sim.CSCycles()
	err := card.WriteBlock(1, make([]byte, 100))
	require.ErrorIs(t, err, ErrBlockSize)
	assert.Equal(t, before, sim.CSCycles(), "a rejected size must not touch the bus")
}

func TestBlockIONotReady(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	card, _ := newTestCard(t, sim)

	before := sim.CSCycles()

	_, err := card.ReadBlock(0)
	assert.ErrorIs(t, err, ErrNotReady)
	err = card.WriteBlock(0, patternBlock())
	assert.ErrorIs(t, err, ErrNotReady)
	err = card.ModifyBlock(0, func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrNotReady)

	assert.Equal(t, before, sim.CSCycles(), "not-ready I/O must not touch the bus")
}

func TestByteAddressedScaling(t *testing.T) {
	t.Parallel()
	// On byte-addressed cards the wire address is n*512; the simulator
	// stores by block number, so a mismatch would land on block n*512.
	sim := sdtest.NewVirtualCard()
	sim.HighCapacity = false
	card := newReadyCard(t, sim)
	require.Equal(t, CardTypeSDv2, card.Type())

	data := patternBlock()
	require.NoError(t, card.WriteBlock(3, data))
	assert.Equal(t, data, sim.Block(3))

	got, err := card.ReadBlock(3)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestModifyBlock(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.SetBlock(9, patternBlock())
	card := newReadyCard(t, sim)

	err := card.ModifyBlock(9, func(block []byte) error {
		block[0] = 0xAB
		block[511] = 0xCD
		return nil
	})
	require.NoError(t, err)

	got := sim.Block(9)
	assert.Equal(t, byte(0xAB), got[0])
	assert.Equal(t, byte(0xCD), got[511])
	assert.Equal(t, patternBlock()[1:511], got[1:511])
}

func TestModifyBlockIdentity(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.SetBlock(4, patternBlock())
	card := newReadyCard(t, sim)

	require.NoError(t, card.ModifyBlock(4, func([]byte) error { return nil }))
	assert.Equal(t, patternBlock(), sim.Block(4))
}

func TestModifyBlockMutatorError(t *testing.T) {
	t.Parallel()
	sim := sdtest.NewVirtualCard()
	sim.SetBlock(6, patternBlock())
	card := newReadyCard(t, sim)

	err := card.ModifyBlock(6, func(block []byte) error {
		block[0] = 0xFF
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	// The write never happened and the bus was released.
	assert.Equal(t, patternBlock(), sim.Block(6))
	assert.False(t, sim.CSLow())
}
