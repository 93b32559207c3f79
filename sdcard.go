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

// Package sdcard implements an SD/MMC block device driver speaking the SD
// Card protocol in SPI mode. It manages the full card lifecycle: presence
// detection, the power-up handshake, version and capacity discovery, command
// framing with CRC protection, and serialized single-block I/O.
//
// Higher layers (partition tables, filesystems) consume ReadBlock and
// WriteBlock; the platform SPI peripheral and GPIO pins are abstracted
// behind the SPI, OutputPin and DetectPin interfaces, implemented for Linux
// hosts by the transport/spi package.
package sdcard

import (
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/tessel/sdcard/internal/syncutil"
)

// CardType is the capacity class discovered during initialization. It
// determines how block numbers scale to wire addresses.
type CardType int

const (
	// CardTypeUnknown means initialization has not classified the card.
	CardTypeUnknown CardType = iota
	// CardTypeSDv1 is a version-1 card (or an MMCv3, not distinguished),
	// byte-addressed.
	CardTypeSDv1
	// CardTypeSDv2 is a version-2 standard-capacity card, byte-addressed.
	CardTypeSDv2
	// CardTypeSDv2Block is a version-2 high-capacity card (SDHC/SDXC),
	// block-addressed.
	CardTypeSDv2Block
)

func (t CardType) String() string {
	switch t {
	case CardTypeSDv1:
		return "SDv1"
	case CardTypeSDv2:
		return "SDv2"
	case CardTypeSDv2Block:
		return "SDv2Block"
	default:
		return "Unknown"
	}
}

// Card is the driver handle for one SD card slot.
//
// All bus traffic is serialized through a single owner goroutine, so the
// block operations may be called from any goroutine. Event callbacks are
// delivered from the presence monitor goroutine and are never reentrant
// with respect to the operation that caused them; they must be set before
// Start.
type Card struct {
	// OnInserted fires when the detect line sees a card seated.
	OnInserted func()
	// OnRemoved fires when the card leaves the slot.
	OnRemoved func()
	// OnReady fires when initialization completes and block I/O is usable.
	OnReady func()
	// OnError fires when initialization fails; the card stays not ready.
	OnError func(error)

	spi    SPI
	csn    OutputPin
	detect DetectPin
	bus    *serializer

	budgets PollBudgets
	settle  time.Duration
	slow    physic.Frequency
	fast    physic.Frequency

	stop chan struct{}
	done chan struct{}

	mu       syncutil.RWMutex
	present  bool
	ready    bool
	waiting  bool
	cardType CardType
	closed   bool
	started  bool
}

// Option configures a Card at construction time.
type Option func(*Card) error

// WithPollBudgets overrides the bounded-poll budgets.
func WithPollBudgets(b PollBudgets) Option {
	return func(c *Card) error {
		c.budgets = b
		return nil
	}
}

// WithSlowClock overrides the identification-phase clock. The SD spec
// requires it between 100 and 400 kHz.
func WithSlowClock(f physic.Frequency) Option {
	return func(c *Card) error {
		c.slow = f
		return nil
	}
}

// WithFastClock overrides the steady-state clock used after init.
func WithFastClock(f physic.Frequency) Option {
	return func(c *Card) error {
		c.fast = f
		return nil
	}
}

// WithSettleDelay overrides the post-insertion settle delay before the
// power-up handshake starts.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Card) error {
		c.settle = d
		return nil
	}
}

// New binds a Card to the platform SPI peripheral, the chip-select output
// and the card-detect input. The returned card does not watch the slot
// until Start is called.
func New(spi SPI, csn OutputPin, detect DetectPin, opts ...Option) (*Card, error) {
	c := &Card{
		spi:      spi,
		csn:      csn,
		detect:   detect,
		budgets:  DefaultPollBudgets(),
		settle:   time.Millisecond,
		slow:     slowClock,
		fast:     fastClock,
		cardType: CardTypeUnknown,
		waiting:  true,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.bus = newSerializer(spi, csn)

	// Park CSN high so the card ignores the bus until a transaction
	// claims it.
	if err := csn.Out(true); err != nil {
		return nil, &WireError{Op: "csn init", Err: err}
	}

	return c, nil
}

// Present reports the last observed card-detect level.
func (c *Card) Present() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.present
}

// Ready reports whether initialization completed and block I/O is usable.
func (c *Card) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Type returns the capacity class discovered during initialization, or
// CardTypeUnknown before the card is ready.
func (c *Card) Type() CardType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cardType
}

// BlockSize returns the transfer unit of the block interface.
func (*Card) BlockSize() int {
	return BlockSize
}

// Restart marks the card for re-initialization: the next insertion edge
// re-runs the power-up handshake. It also clears ready and the card type.
// Call after an initialization error, before the card is reseated.
func (c *Card) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = false
	c.waiting = true
	c.cardType = CardTypeUnknown
}

// Close stops the presence monitor and the bus serializer. Block
// operations after Close fail with ErrClosed.
func (c *Card) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	close(c.stop)
	if started {
		<-c.done
	}
	c.bus.Close()
	return nil
}

// checkReady gates block I/O on initialization having completed.
func (c *Card) checkReady() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.closed:
		return ErrClosed
	case !c.ready:
		return ErrNotReady
	default:
		return nil
	}
}

// wireAddress scales a block number to the on-wire address: raw block
// units for block-addressed cards, byte offsets otherwise.
func (c *Card) wireAddress(block uint32) uint32 {
	if c.Type() == CardTypeSDv2Block {
		return block
	}
	return block * BlockSize
}

// emitError reports an initialization failure to the OnError callback.
func (c *Card) emitError(err error) {
	debugf("card error: %v", err)
	if c.OnError != nil {
		c.OnError(err)
	}
}
