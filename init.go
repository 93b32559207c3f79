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
	"time"
)

// initState names the milestones of the power-up handshake. The driver
// loop in initialize advances through them in order; every fatal exit
// leaves the card not ready.
type initState int

const (
	stateCold initState = iota
	statePulseSent
	stateIdleAcked
	stateVoltageChecked
	stateReady41
	stateCrcOn
	stateOcrRead
	stateFast
	stateDone
)

// hcsFlag in the ACMD41 argument announces host support for high-capacity
// cards.
const hcsFlag = uint32(1) << 30

// ifCondCheck is the CMD8 argument: 2.7-3.6V range (0x1) plus the 0xAA
// check pattern the card must echo.
const ifCondCheck = uint32(0x000001AA)

// initialize runs the cold-start handshake and commits the discovered card
// type on success. It is called from the monitor goroutine after the
// settle delay; each command cycles chip select in its own transaction.
func (c *Card) initialize() error {
	cardType := CardTypeUnknown

	for state := stateCold; state != stateDone; {
		var err error
		switch state {
		case stateCold:
			err = c.stepPulse()
			state = statePulseSent
		case statePulseSent:
			err = c.stepGoIdle()
			state = stateIdleAcked
		case stateIdleAcked:
			cardType, err = c.stepCheckVoltage()
			state = stateVoltageChecked
		case stateVoltageChecked:
			err = c.stepWaitOpCond()
			state = stateReady41
		case stateReady41:
			err = c.stepCrcOn()
			state = stateCrcOn
		case stateCrcOn:
			cardType, err = c.stepReadOCR(cardType)
			state = stateOcrRead
		case stateOcrRead:
			err = c.stepFastClock()
			state = stateFast
		case stateFast:
			c.commitReady(cardType)
			state = stateDone
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// stepPulse drops to the identification clock and clocks at least 74
// cycles of 0xFF with chip select high, switching the card into SPI mode.
func (c *Card) stepPulse() error {
	if err := c.spi.SetSpeed(c.slow); err != nil {
		return &WireError{Op: "set slow clock", Err: err}
	}

	pulse := make([]byte, 10)
	for i := range pulse {
		pulse[i] = 0xFF
	}
	return c.bus.Transaction(func(tx *Txn) error {
		if err := tx.deassertCS(); err != nil {
			return err
		}
		return tx.Send(pulse)
	})
}

// stepGoIdle sends CMD0 and requires the card to report the idle state.
func (c *Card) stepGoIdle() error {
	r1, _, err := c.sendCommand(cmdGoIdleState, 0)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoCard, err)
	}
	if r1 != r1Idle {
		return fmt.Errorf("%w: GO_IDLE_STATE returned R1 0x%02X", ErrNoCard, r1)
	}
	return nil
}

// stepCheckVoltage sends CMD8. A card that rejects it as illegal is SDv1
// (or MMCv3, not distinguished); a v2 card must echo the check pattern.
func (c *Card) stepCheckVoltage() (CardType, error) {
	_, tail, err := c.sendCommand(cmdSendIfCond, ifCondCheck)
	if err != nil {
		var r1Err *R1Error
		if errors.As(err, &r1Err) && r1Err.IsIllegal() {
			return CardTypeSDv1, nil
		}
		return CardTypeUnknown, err
	}

	if tail[2]&0x0F != 0x01 || tail[3] != 0xAA {
		return CardTypeUnknown, fmt.Errorf("%w: echo % X", ErrBadVoltage, tail)
	}
	return CardTypeUnknown, nil
}

// stepWaitOpCond loops ACMD41 with the HCS flag until the idle flag
// clears, yielding between tries.
func (c *Card) stepWaitOpCond() error {
	for n := 0; n < c.budgets.OpCond; n++ {
		r1, _, err := c.sendCommand(acmdSendOpCond, hcsFlag)
		if err != nil {
			return err
		}
		if r1&r1Idle == 0 {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return &TimeoutError{Op: "waiting for card ready", Attempts: c.budgets.OpCond}
}

// stepCrcOn enables CRC checking on the bus with CMD59.
func (c *Card) stepCrcOn() error {
	_, _, err := c.sendCommand(cmdCrcOnOff, 1)
	return err
}

// stepReadOCR classifies a v2 card by the CCS bit of the OCR. SDv1 cards
// were already classified and skip this step. Byte-addressed v2 cards get
// the block length pinned to 512.
func (c *Card) stepReadOCR(cardType CardType) (CardType, error) {
	if cardType == CardTypeSDv1 {
		return cardType, nil
	}

	_, tail, err := c.sendCommand(cmdReadOCR, 0)
	if err != nil {
		return cardType, err
	}
	if tail[0]&0x40 != 0 {
		return CardTypeSDv2Block, nil
	}

	if _, _, err := c.sendCommand(cmdSetBlocklen, BlockSize); err != nil {
		return cardType, err
	}
	return CardTypeSDv2, nil
}

// stepFastClock steps the bus up to the steady-state clock.
func (c *Card) stepFastClock() error {
	if err := c.spi.SetSpeed(c.fast); err != nil {
		return &WireError{Op: "set fast clock", Err: err}
	}
	return nil
}

// commitReady publishes the discovered type and flips the card to ready.
// Only this path sets ready.
func (c *Card) commitReady(cardType CardType) {
	c.mu.Lock()
	c.cardType = cardType
	c.ready = true
	c.mu.Unlock()

	debugf("card ready, type %s", cardType)
	if c.OnReady != nil {
		c.OnReady()
	}
}
