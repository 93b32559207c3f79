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

package mbr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSector assembles a boot sector with the given partition entries.
func buildSector(parts ...Partition) []byte {
	sector := make([]byte, SectorSize)
	for i, p := range parts {
		entry := sector[tableOffset+i*entrySize:]
		entry[0] = p.Status
		entry[4] = p.Type
		binary.LittleEndian.PutUint32(entry[8:12], p.FirstLBA)
		binary.LittleEndian.PutUint32(entry[12:16], p.Sectors)
	}
	sector[signatureOffset] = 0x55
	sector[signatureOffset+1] = 0xAA
	return sector
}

func TestParse(t *testing.T) {
	t.Parallel()
	fat32 := Partition{Status: 0x80, Type: 0x0C, FirstLBA: 2048, Sectors: 262144}
	linux := Partition{Type: 0x83, FirstLBA: 264192, Sectors: 65536}

	table, err := Parse(buildSector(fat32, linux))
	require.NoError(t, err)

	assert.Equal(t, fat32, table.Partitions[0])
	assert.Equal(t, linux, table.Partitions[1])
	assert.True(t, table.Partitions[2].Empty())
	assert.True(t, table.Partitions[3].Empty())

	used := table.Used()
	require.Len(t, used, 2)
	assert.True(t, used[0].Bootable())
	assert.False(t, used[1].Bootable())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	t.Run("wrong size", func(t *testing.T) {
		t.Parallel()
		_, err := Parse(make([]byte, 100))
		assert.ErrorIs(t, err, ErrSectorSize)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		sector := buildSector(Partition{Type: 0x0C, FirstLBA: 1, Sectors: 1})
		sector[signatureOffset] = 0x00
		_, err := Parse(sector)
		assert.ErrorIs(t, err, ErrBadSignature)
	})
}

func TestTypeName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		id   byte
		name string
	}{
		{0x00, "empty"},
		{0x01, "FAT12"},
		{0x06, "FAT16"},
		{0x0B, "FAT32"},
		{0x0C, "FAT32"},
		{0x07, "exFAT/NTFS"},
		{0x83, "Linux"},
		{0xEE, "type 0xEE"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, Partition{Type: tt.id}.TypeName())
	}
}

func TestParseUnknownTypeKept(t *testing.T) {
	t.Parallel()
	odd := Partition{Type: 0x42, FirstLBA: 10, Sectors: 20}
	table, err := Parse(buildSector(odd))
	require.NoError(t, err)
	assert.Equal(t, odd, table.Partitions[0])
	assert.Len(t, table.Used(), 1)
}
