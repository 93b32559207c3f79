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
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestR1ErrorFlags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		r1       byte
		contains []string
		illegal  bool
	}{
		{"illegal only", 0x05, []string{"ILLEGAL_COMMAND"}, true},
		{"crc", 0x08, []string{"COM_CRC_ERROR"}, false},
		{"address and parameter", 0x60, []string{"ADDRESS_ERROR", "PARAMETER_ERROR"}, false},
		{"illegal plus crc", 0x0C, []string{"ILLEGAL_COMMAND", "COM_CRC_ERROR"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := &R1Error{Command: "SEND_IF_COND", R1: tt.r1}
			for _, want := range tt.contains {
				assert.Contains(t, err.Error(), want)
			}
			assert.Equal(t, tt.illegal, err.IsIllegal())
		})
	}
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()
	assert.True(t, IsTimeout(&TimeoutError{Op: "read data token", Attempts: 100}))
	assert.False(t, IsTimeout(ErrChecksum))
	assert.False(t, IsTimeout(nil))
}

func TestIsFatal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"closed", ErrClosed, true},
		{"removed", ErrRemoved, true},
		{"no card", ErrNoCard, true},
		{"checksum", ErrChecksum, false},
		{"timeout", &TimeoutError{Op: "x", Attempts: 8}, false},
		{"wire ENODEV", &WireError{Op: "transfer", Err: syscall.ENODEV}, true},
		{"wire EIO", &WireError{Op: "transfer", Err: syscall.EIO}, true},
		{"wire other", &WireError{Op: "transfer", Err: errors.New("nope")}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestDataErrorUnwrap(t *testing.T) {
	t.Parallel()
	err := &DataError{Op: "write block", Err: ErrWriteRejected, Token: 0x0D}
	assert.ErrorIs(t, err, ErrWriteRejected)
	assert.Contains(t, err.Error(), "0x0D")
}

func TestWireErrorUnwrap(t *testing.T) {
	t.Parallel()
	inner := errors.New("bus glitch")
	err := &WireError{Op: "transfer", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "transfer")
}
