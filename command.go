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

// sendCommand runs one command in its own transaction. Operations that
// compose several commands under a single chip-select interval use
// sendCommandLocked with the transaction they already hold.
func (c *Card) sendCommand(cmd Command, arg uint32) (byte, []byte, error) {
	var (
		r1   byte
		tail []byte
	)
	err := c.bus.Transaction(func(tx *Txn) error {
		var err error
		r1, tail, err = c.sendCommandLocked(tx, cmd, arg)
		return err
	})
	return r1, tail, err
}

// sendCommandLocked frames and sends cmd on a held transaction, polls for
// the R1 status byte and reads the R3/R7 tail when the command has one.
// Returns the R1 byte, the tail (nil for R1-only commands), and an error
// when the card flagged one or never answered.
func (c *Card) sendCommandLocked(tx *Txn, cmd Command, arg uint32) (byte, []byte, error) {
	desc := commandTable[cmd]

	if desc.appCmd {
		if _, _, err := c.sendCommandLocked(tx, cmdAppCmd, 0); err != nil {
			return 0, nil, err
		}
		// Deassert CSN for one clocked byte between CMD55 and the
		// application command. Some cards misalign the second response
		// without this cycle.
		if err := tx.deassertCS(); err != nil {
			return 0, nil, err
		}
		if err := tx.Send([]byte{0xFF}); err != nil {
			return 0, nil, err
		}
		if err := tx.assertCS(); err != nil {
			return 0, nil, err
		}
	}

	frame := encodeFrame(desc.index, arg)
	if err := tx.Send(frame[:]); err != nil {
		return 0, nil, err
	}

	// The card answers within a few clocked bytes; the response is the
	// first one with the MSB clear.
	r1, err := pollByte(tx, c.budgets.R1, desc.name+" response",
		func(b byte) (pollOutcome, error) {
			if b&0x80 == 0 {
				return pollDone, nil
			}
			return pollContinue, nil
		})
	if err != nil {
		return 0, nil, err
	}

	if r1&r1AnyError != 0 {
		return r1, nil, &R1Error{Command: desc.name, R1: r1}
	}

	var tail []byte
	if desc.response != responseR1 {
		if tail, err = tx.Receive(4); err != nil {
			return r1, nil, err
		}
	}

	debugf("%s(0x%08X) -> R1 0x%02X % X", desc.name, arg, r1, tail)
	return r1, tail, nil
}
