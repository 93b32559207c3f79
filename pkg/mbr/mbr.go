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

// Package mbr parses the classic Master Boot Record partition table found
// in sector 0 of SD cards. It is a pure parser with no I/O of its own;
// callers hand it the sector bytes.
package mbr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SectorSize is the size of the boot sector the parser expects.
const SectorSize = 512

const (
	tableOffset     = 0x1BE
	entrySize       = 16
	signatureOffset = 0x1FE
)

var (
	// ErrSectorSize indicates the input is not one full sector.
	ErrSectorSize = errors.New("mbr: sector must be 512 bytes")
	// ErrBadSignature indicates the 0x55AA boot signature is missing.
	ErrBadSignature = errors.New("mbr: missing boot signature")
)

// Partition is one of the four primary partition table entries. Fields are
// taken verbatim from the on-disk little-endian layout; the CHS fields are
// obsolete and not carried.
type Partition struct {
	Status   byte
	Type     byte
	FirstLBA uint32
	Sectors  uint32
}

// Empty reports whether the entry slot is unused.
func (p Partition) Empty() bool {
	return p.Type == 0x00
}

// Bootable reports whether the entry carries the active flag.
func (p Partition) Bootable() bool {
	return p.Status == 0x80
}

// TypeName returns a human-readable name for the partition type id.
func (p Partition) TypeName() string {
	switch p.Type {
	case 0x00:
		return "empty"
	case 0x01:
		return "FAT12"
	case 0x04, 0x06, 0x0E:
		return "FAT16"
	case 0x05, 0x0F:
		return "extended"
	case 0x07:
		return "exFAT/NTFS"
	case 0x0B, 0x0C:
		return "FAT32"
	case 0x83:
		return "Linux"
	default:
		return fmt.Sprintf("type 0x%02X", p.Type)
	}
}

// Table is a parsed partition table.
type Table struct {
	Partitions [4]Partition
}

// Used returns the non-empty entries in table order.
func (t *Table) Used() []Partition {
	var used []Partition
	for _, p := range t.Partitions {
		if !p.Empty() {
			used = append(used, p)
		}
	}
	return used
}

// Parse reads the partition table out of a boot sector. Unknown partition
// types are kept; only a wrong size or a missing boot signature fails.
func Parse(sector []byte) (*Table, error) {
	if len(sector) != SectorSize {
		return nil, fmt.Errorf("%w: got %d", ErrSectorSize, len(sector))
	}
	if sector[signatureOffset] != 0x55 || sector[signatureOffset+1] != 0xAA {
		return nil, fmt.Errorf("%w: % X", ErrBadSignature, sector[signatureOffset:signatureOffset+2])
	}

	var table Table
	for i := range table.Partitions {
		entry := sector[tableOffset+i*entrySize:]
		table.Partitions[i] = Partition{
			Status:   entry[0],
			Type:     entry[4],
			FirstLBA: binary.LittleEndian.Uint32(entry[8:12]),
			Sectors:  binary.LittleEndian.Uint32(entry[12:16]),
		}
	}
	return &table, nil
}
