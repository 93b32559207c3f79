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
	"errors"
	"fmt"

	"github.com/tessel/sdcard/pkg/mbr"
)

// ErrOutOfRange indicates a block index past the end of a partition.
var ErrOutOfRange = errors.New("block index out of partition range")

// Partition is a bounded block-device view over one MBR partition entry.
// Filesystem drivers consume it the same way they would the whole card.
type Partition struct {
	card  *Card
	entry mbr.Partition
}

// Filesystems reads the partition table from block 0 and returns a block
// view per populated entry. Filesystem interpretation itself is left to
// the layers above.
func (c *Card) Filesystems() ([]*Partition, error) {
	sector, err := c.ReadBlock(0)
	if err != nil {
		return nil, fmt.Errorf("reading partition table: %w", err)
	}

	table, err := mbr.Parse(sector)
	if err != nil {
		return nil, err
	}

	partitions := make([]*Partition, 0, 4)
	for _, entry := range table.Used() {
		partitions = append(partitions, &Partition{card: c, entry: entry})
	}
	return partitions, nil
}

// Entry returns the raw partition table entry backing this view.
func (p *Partition) Entry() mbr.Partition {
	return p.entry
}

// Blocks returns the partition length in 512-byte blocks.
func (p *Partition) Blocks() uint32 {
	return p.entry.Sectors
}

// ReadBlock reads block n relative to the partition start.
func (p *Partition) ReadBlock(n uint32) ([]byte, error) {
	if n >= p.entry.Sectors {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, n, p.entry.Sectors)
	}
	return p.card.ReadBlock(p.entry.FirstLBA + n)
}

// WriteBlock writes block n relative to the partition start.
func (p *Partition) WriteBlock(n uint32, data []byte) error {
	if n >= p.entry.Sectors {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, n, p.entry.Sectors)
	}
	return p.card.WriteBlock(p.entry.FirstLBA+n, data)
}

func (p *Partition) String() string {
	return fmt.Sprintf("%s at block %d, %d blocks", p.entry.TypeName(),
		p.entry.FirstLBA, p.entry.Sectors)
}
