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

// Package testing provides a wire-level virtual SD card for driver tests.
//
// VirtualCard simulates a card in SPI mode at the byte level, per the SD
// Simplified Specification section 7: command frames, R1/R3/R7 responses,
// data tokens, CRC16-protected payloads, write data responses and busy
// signalling. It satisfies the driver's SPI and chip-select interfaces
// structurally, and records a bus trace for invariant checks.
package testing

import (
	"encoding/binary"

	"periph.io/x/conn/v3/physic"

	"github.com/tessel/sdcard/internal/crc"
	"github.com/tessel/sdcard/internal/syncutil"
)

// rxState tracks what the simulated card expects from the host next.
type rxState int

const (
	rxCommand rxState = iota
	rxWriteToken
	rxWritePayload
)

// VirtualCard is a byte-level SD card simulator behind the SPI and
// chip-select interfaces.
type VirtualCard struct {
	// Version1 makes the card reject CMD8 as illegal (SDv1 behavior).
	Version1 bool
	// HighCapacity sets the CCS bit in the OCR and switches addressing
	// to block units.
	HighCapacity bool
	// ReadyAfter is how many ACMD41 tries the card stays idle for; the
	// Nth try reports ready. Zero means ready on the first try.
	ReadyAfter int
	// TokenDelay is how many filler bytes precede the read data token.
	TokenDelay int
	// BusyBytes is how many busy (0x00) bytes follow the write data
	// response before the card reports idle.
	BusyBytes int

	// Absent mutes the card entirely: every clocked byte reads 0xFF.
	Absent bool
	// BadVoltageEcho corrupts the CMD8 echo tail.
	BadVoltageEcho bool
	// CorruptRead flips one bit in read payloads after the CRC is
	// computed, so the checksum no longer matches.
	CorruptRead bool
	// ReadErrorToken, when nonzero, is emitted in place of the data
	// token on reads.
	ReadErrorToken byte
	// WriteResponse, when nonzero, overrides the data response byte.
	WriteResponse byte
	// StayBusy keeps the card busy after a write forever.
	StayBusy bool

	mu syncutil.RWMutex

	csLow bool
	idle  bool

	state     rxState
	frame     []byte
	out       []byte
	appCmd    bool
	acmdTries int

	writeAddr    uint32
	writePayload []byte

	blocks map[uint32][]byte

	speeds      []physic.Frequency
	csCycles    int
	dirtyHighTx bool
	acmdCSCycle bool
	lastCmd55   bool
}

// NewVirtualCard returns a powered simulated card that enters the idle
// state on its first GO_IDLE_STATE (CMD0). The default
// configuration behaves like an SDHC card that becomes ready on the first
// ACMD41 try.
func NewVirtualCard() *VirtualCard {
	return &VirtualCard{
		HighCapacity: true,
		blocks:       make(map[uint32][]byte),
	}
}

// Tx implements the driver's SPI interface: full-duplex, byte at a time
// through the card state machine.
func (v *VirtualCard) Tx(w, r []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, b := range w {
		miso := v.clockByte(b)
		if r != nil {
			r[i] = miso
		}
	}
	return nil
}

// SetSpeed implements the driver's SPI interface, recording the clock
// configuration history.
func (v *VirtualCard) SetSpeed(f physic.Frequency) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.speeds = append(v.speeds, f)
	return nil
}

// Out implements the chip-select interface. high=false selects the card.
func (v *VirtualCard) Out(high bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	low := !high
	if low == v.csLow {
		return nil
	}
	v.csLow = low

	if low {
		// Selection aborts whatever was mid-flight, but the APP_CMD
		// prefix survives the deassert-clock-reassert cycle.
		v.frame = nil
		v.out = nil
		v.state = rxCommand
		if v.appCmd && v.lastCmd55 {
			v.acmdCSCycle = true
		}
	} else {
		v.csCycles++
	}
	return nil
}

// clockByte exchanges one byte with the host. Caller holds the lock.
func (v *VirtualCard) clockByte(mosi byte) byte {
	if v.Absent {
		return 0xFF
	}

	if !v.csLow {
		// Only filler may be clocked while the card is deselected
		// (the native-mode pulse and the release byte).
		if mosi != 0xFF {
			v.dirtyHighTx = true
		}
		return 0xFF
	}

	// Serve queued response bytes before interpreting new input.
	if len(v.out) > 0 {
		b := v.out[0]
		v.out = v.out[1:]
		return b
	}

	switch v.state {
	case rxWriteToken:
		if mosi == 0xFE {
			v.state = rxWritePayload
			v.writePayload = v.writePayload[:0]
		}
	case rxWritePayload:
		v.writePayload = append(v.writePayload, mosi)
		if len(v.writePayload) == 512+2 {
			v.finishWrite()
		}
	case rxCommand:
		v.collectFrame(mosi)
	}

	return 0xFF
}

// collectFrame gathers the 6-byte command frame, skipping filler.
func (v *VirtualCard) collectFrame(mosi byte) {
	if len(v.frame) == 0 {
		if mosi&0xC0 != 0x40 {
			return
		}
	}
	v.frame = append(v.frame, mosi)
	if len(v.frame) == 6 {
		frame := v.frame
		v.frame = nil
		v.handleCommand(frame)
	}
}

// handleCommand queues the response for a complete frame: one filler byte
// of command latency, the R1 status, and any format-specific tail.
func (v *VirtualCard) handleCommand(frame []byte) {
	index := frame[0] & 0x3F
	arg := binary.BigEndian.Uint32(frame[1:5])

	app := v.appCmd
	v.appCmd = false
	v.lastCmd55 = false

	base := byte(0x00)
	if v.idle {
		base = 0x01
	}

	if crc.Crc7(frame[:5])<<1|0x01 != frame[5] {
		v.push(0xFF, base|0x08)
		return
	}

	switch {
	case app && index == 41:
		v.acmdTries++
		if v.acmdTries >= v.ReadyAfter {
			v.idle = false
			v.push(0xFF, 0x00)
		} else {
			v.push(0xFF, 0x01)
		}
	case index == 0:
		v.idle = true
		v.acmdTries = 0
		v.acmdCSCycle = false
		v.push(0xFF, 0x01)
	case index == 8:
		v.handleSendIfCond(base, arg)
	case index == 55:
		v.appCmd = true
		v.lastCmd55 = true
		v.push(0xFF, base)
	case index == 58:
		ocr := byte(0x80)
		if v.HighCapacity {
			ocr |= 0x40
		}
		v.push(0xFF, base, ocr, 0xFF, 0x80, 0x00)
	case index == 16, index == 59:
		v.push(0xFF, base)
	case index == 17:
		v.handleReadBlock(arg)
	case index == 24:
		v.push(0xFF, 0x00)
		v.writeAddr = v.blockNumber(arg)
		v.state = rxWriteToken
	default:
		v.push(0xFF, base|0x04)
	}
}

func (v *VirtualCard) handleSendIfCond(base byte, arg uint32) {
	if v.Version1 {
		v.push(0xFF, base|0x04)
		return
	}
	echo := []byte{0x00, 0x00, byte(arg>>8) & 0x0F, byte(arg)}
	if v.BadVoltageEcho {
		echo[3] ^= 0xFF
	}
	v.push(0xFF, base)
	v.push(echo...)
}

func (v *VirtualCard) handleReadBlock(arg uint32) {
	v.push(0xFF, 0x00)
	if v.ReadErrorToken != 0 {
		v.push(v.ReadErrorToken)
		return
	}
	for n := 0; n < v.TokenDelay; n++ {
		v.push(0xFF)
	}
	v.push(0xFE)

	data := v.blockData(v.blockNumber(arg))
	sum := crc.Crc16(data)
	if v.CorruptRead {
		data = append([]byte{}, data...)
		data[7] ^= 0x01
	}
	v.push(data...)
	v.push(byte(sum>>8), byte(sum))
}

// finishWrite validates the collected payload+CRC and queues the data
// response followed by the busy bytes.
func (v *VirtualCard) finishWrite() {
	v.state = rxCommand

	resp := byte(0x05)
	if crc.Crc16(v.writePayload) != 0 {
		resp = 0x0B
	}
	if v.WriteResponse != 0 {
		resp = v.WriteResponse
	}

	if resp&0x1F == 0x05 {
		stored := make([]byte, 512)
		copy(stored, v.writePayload[:512])
		v.blocks[v.writeAddr] = stored
	}

	v.push(resp)
	if v.StayBusy {
		for n := 0; n < 4096; n++ {
			v.push(0x00)
		}
		return
	}
	for n := 0; n < v.BusyBytes; n++ {
		v.push(0x00)
	}
	v.push(0xFF)
}

func (v *VirtualCard) push(bs ...byte) {
	v.out = append(v.out, bs...)
}

// blockNumber translates a wire address back to a block index per the
// card's addressing mode.
func (v *VirtualCard) blockNumber(arg uint32) uint32 {
	if v.HighCapacity {
		return arg
	}
	return arg / 512
}

func (v *VirtualCard) blockData(n uint32) []byte {
	if b, ok := v.blocks[n]; ok {
		return b
	}
	return make([]byte, 512)
}

// Test inspection helpers

// SetAbsent mutes or unmutes the card while the bus is live.
func (v *VirtualCard) SetAbsent(absent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Absent = absent
}

// SetBlock seeds the card's storage with a 512-byte block.
func (v *VirtualCard) SetBlock(n uint32, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	stored := make([]byte, 512)
	copy(stored, data)
	v.blocks[n] = stored
}

// Block returns a copy of the stored block, or zeroes if never written.
func (v *VirtualCard) Block(n uint32) []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]byte{}, v.blockData(n)...)
}

// CSCycles returns how many select/deselect cycles the bus has seen.
func (v *VirtualCard) CSCycles() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.csCycles
}

// CSLow reports whether the card is currently selected.
func (v *VirtualCard) CSLow() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.csLow
}

// CleanDeselectedTraffic reports whether every byte clocked while the card
// was deselected was filler.
func (v *VirtualCard) CleanDeselectedTraffic() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return !v.dirtyHighTx
}

// SawAppCmdCSCycle reports whether the host cycled chip select between
// CMD55 and the application command that followed it.
func (v *VirtualCard) SawAppCmdCSCycle() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.acmdCSCycle
}

// AcmdTries returns how many ACMD41 attempts the card has seen.
func (v *VirtualCard) AcmdTries() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.acmdTries
}

// Speeds returns the history of clock configurations.
func (v *VirtualCard) Speeds() []physic.Frequency {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]physic.Frequency{}, v.speeds...)
}
