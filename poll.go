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

// PollBudgets bounds every byte-at-a-time wait the protocol performs. Each
// poll clocks one filler byte per attempt; expiry surfaces a TimeoutError
// for the operation and the bus is released normally.
type PollBudgets struct {
	// R1 bounds the wait for a command's first response byte.
	R1 int
	// DataToken bounds the wait for the 0xFE start token on reads.
	DataToken int
	// OpCond bounds the ACMD41 retry loop during initialization.
	OpCond int
	// Busy bounds the post-write idle poll for a 0xFF byte.
	Busy int
}

// DefaultPollBudgets returns the budgets the protocol was validated with.
func DefaultPollBudgets() PollBudgets {
	return PollBudgets{
		R1:        8,
		DataToken: 100,
		OpCond:    100,
		Busy:      100,
	}
}

// pollOutcome tells pollByte whether to stop on the byte just read.
type pollOutcome int

const (
	pollContinue pollOutcome = iota
	pollDone
)

// pollByte clocks filler bytes one at a time until accept stops the loop,
// accept returns an error, or the budget runs out.
func pollByte(tx *Txn, budget int, op string, accept func(byte) (pollOutcome, error)) (byte, error) {
	for n := 0; n < budget; n++ {
		b, err := tx.ReceiveByte()
		if err != nil {
			return 0, err
		}
		outcome, err := accept(b)
		if err != nil {
			return b, err
		}
		if outcome == pollDone {
			return b, nil
		}
	}
	return 0, &TimeoutError{Op: op, Attempts: budget}
}
