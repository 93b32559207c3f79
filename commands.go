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
	"encoding/binary"

	"github.com/tessel/sdcard/internal/crc"
)

// Command identifies an entry in the command table.
type Command int

// Commands the driver issues. The command table below carries the SD
// Simplified Spec section 7 indices and response formats.
const (
	cmdGoIdleState Command = iota
	cmdSendIfCond
	cmdSetBlocklen
	cmdReadSingleBlock
	cmdWriteBlock
	cmdAppCmd
	cmdReadOCR
	cmdCrcOnOff
	acmdSendOpCond
)

// responseFormat selects how many bytes follow the R1 status byte: none
// for R1, a 4-byte OCR for R3, a 4-byte echo for R7.
type responseFormat int

const (
	responseR1 responseFormat = iota
	responseR3
	responseR7
)

type commandDesc struct {
	name     string
	index    byte
	response responseFormat
	appCmd   bool
}

var commandTable = map[Command]commandDesc{
	cmdGoIdleState:     {name: "GO_IDLE_STATE", index: 0, response: responseR1},
	cmdSendIfCond:      {name: "SEND_IF_COND", index: 8, response: responseR7},
	cmdSetBlocklen:     {name: "SET_BLOCKLEN", index: 16, response: responseR1},
	cmdReadSingleBlock: {name: "READ_SINGLE_BLOCK", index: 17, response: responseR1},
	cmdWriteBlock:      {name: "WRITE_BLOCK", index: 24, response: responseR1},
	cmdAppCmd:          {name: "APP_CMD", index: 55, response: responseR1},
	cmdReadOCR:         {name: "READ_OCR", index: 58, response: responseR3},
	cmdCrcOnOff:        {name: "CRC_ON_OFF", index: 59, response: responseR1},
	acmdSendOpCond:     {name: "APP_SEND_OP_COND", index: 41, response: responseR1, appCmd: true},
}

// String returns the symbolic name used in error messages.
func (c Command) String() string {
	if desc, ok := commandTable[c]; ok {
		return desc.name
	}
	return "UNKNOWN_COMMAND"
}

// encodeFrame builds the 6-byte SPI command frame: start+transmission bits
// with the command index, big-endian 32-bit argument, and CRC7 shifted up
// with the end bit.
func encodeFrame(index byte, arg uint32) [6]byte {
	var frame [6]byte
	frame[0] = 0x40 | index&0x3F
	binary.BigEndian.PutUint32(frame[1:5], arg)
	frame[5] = crc.Crc7(frame[:5])<<1 | 0x01
	return frame
}
