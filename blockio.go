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
	"fmt"

	"github.com/tessel/sdcard/internal/crc"
)

const (
	// tokenData starts the payload of a single-block read or write.
	tokenData = 0xFE

	// Data response token, low 5 bits of the byte following a write
	// payload.
	writeRespMask     = 0x1F
	writeRespAccepted = 0x05
	writeRespCrc      = 0x0B
	writeRespError    = 0x0D
)

// ReadBlock reads the 512-byte block at index n. The card must be ready.
func (c *Card) ReadBlock(n uint32) ([]byte, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	var block []byte
	err := c.bus.Transaction(func(tx *Txn) error {
		var err error
		block, err = c.readBlockLocked(tx, n)
		return err
	})
	return block, err
}

// WriteBlock writes 512 bytes of data to the block at index n. The card
// must be ready and data must be exactly one block.
func (c *Card) WriteBlock(n uint32, data []byte) error {
	if err := c.checkReady(); err != nil {
		return err
	}
	if len(data) != BlockSize {
		return fmt.Errorf("%w: got %d", ErrBlockSize, len(data))
	}
	return c.bus.Transaction(func(tx *Txn) error {
		return c.writeBlockLocked(tx, n, data)
	})
}

// ModifyBlock reads block n, hands the buffer to fn, and writes the result
// back, all inside one held transaction so no other bus user can interleave.
func (c *Card) ModifyBlock(n uint32, fn func(block []byte) error) error {
	if err := c.checkReady(); err != nil {
		return err
	}
	return c.bus.Transaction(func(tx *Txn) error {
		block, err := c.readBlockLocked(tx, n)
		if err != nil {
			return err
		}
		if err := fn(block); err != nil {
			return fmt.Errorf("modify block %d: %w", n, err)
		}
		return c.writeBlockLocked(tx, n, block)
	})
}

// readBlockLocked runs READ_SINGLE_BLOCK on a held transaction: command,
// data-token wait, 512 bytes of payload plus 2 bytes of CRC16, verified by
// accumulating all 514 bytes back to zero.
func (c *Card) readBlockLocked(tx *Txn, n uint32) ([]byte, error) {
	r1, _, err := c.sendCommandLocked(tx, cmdReadSingleBlock, c.wireAddress(n))
	if err != nil {
		return nil, err
	}
	if r1 != 0x00 {
		return nil, fmt.Errorf("%w: READ_SINGLE_BLOCK R1 0x%02X", ErrUnexpectedR1, r1)
	}

	if _, err := pollByte(tx, c.budgets.DataToken, "read data token",
		func(b byte) (pollOutcome, error) {
			switch {
			case b == tokenData:
				return pollDone, nil
			case b&0x80 == 0:
				// A byte with the MSB clear that is not the data
				// token is an error token from the card.
				return pollDone, &DataError{Op: "read block", Err: ErrReadFailed, Token: b}
			default:
				return pollContinue, nil
			}
		}); err != nil {
		return nil, err
	}

	payload, err := tx.Receive(BlockSize + 2)
	if err != nil {
		return nil, err
	}
	if crc.Crc16(payload) != 0 {
		return nil, ErrChecksum
	}

	return payload[:BlockSize], nil
}

// writeBlockLocked runs WRITE_BLOCK on a held transaction: command, stuff
// byte and start token, payload, CRC16, data-response decode, then busy
// polling until the card releases the line.
func (c *Card) writeBlockLocked(tx *Txn, n uint32, data []byte) error {
	r1, _, err := c.sendCommandLocked(tx, cmdWriteBlock, c.wireAddress(n))
	if err != nil {
		return err
	}
	if r1 != 0x00 {
		return fmt.Errorf("%w: WRITE_BLOCK R1 0x%02X", ErrUnexpectedR1, r1)
	}

	if err := tx.Send([]byte{0xFF, tokenData}); err != nil {
		return err
	}
	if err := tx.Send(data); err != nil {
		return err
	}
	sum := crc.Crc16(data)
	if err := tx.Send([]byte{byte(sum >> 8), byte(sum)}); err != nil {
		return err
	}

	resp, err := tx.Receive(2)
	if err != nil {
		return err
	}
	switch resp[0] & writeRespMask {
	case writeRespAccepted:
	case writeRespCrc:
		return &DataError{Op: "write block", Err: fmt.Errorf("%w: CRC rejected", ErrWriteRejected), Token: resp[0]}
	case writeRespError:
		return &DataError{Op: "write block", Err: fmt.Errorf("%w: write error", ErrWriteRejected), Token: resp[0]}
	default:
		return &DataError{Op: "write block", Err: ErrWriteRejected, Token: resp[0]}
	}

	// The card holds the line low until the internal program completes;
	// a 0xFF byte means idle again. Expiry here is terminal.
	if _, err := pollByte(tx, c.budgets.Busy, "write busy wait",
		func(b byte) (pollOutcome, error) {
			if b == 0xFF {
				return pollDone, nil
			}
			return pollContinue, nil
		}); err != nil {
		return err
	}

	return nil
}
