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

// Package spi provides the periph.io-backed platform bindings for the
// sdcard driver: the SPI peripheral plus the chip-select and card-detect
// GPIO lines.
package spi

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	sdcard "github.com/tessel/sdcard"
)

// mode is SPI mode 0 (CPOL=0, CPHA=0) with the kernel's chip-select
// suppressed; the driver cycles CSN itself around each transaction.
const mode = spi.Mode0 | spi.NoCS

// Bus adapts a periph.io SPI port to the driver's SPI interface. Speed
// changes reconnect the port at the new frequency.
type Bus struct {
	port     spi.PortCloser
	conn     spi.Conn
	portName string
}

// New opens an SPI port by its periph.io registry name (empty for the
// first available port) at the given initial clock.
func New(portName string, speed physic.Frequency) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", portName, err)
	}

	conn, err := port.Connect(speed, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	return &Bus{port: port, conn: conn, portName: portName}, nil
}

// Tx performs a full-duplex transfer.
func (b *Bus) Tx(w, r []byte) error {
	//nolint:wrapcheck // the driver wraps wire errors with operation context
	return b.conn.Tx(w, r)
}

// SetSpeed reconnects the port at a new clock frequency.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	conn, err := b.port.Connect(f, mode, 8)
	if err != nil {
		return fmt.Errorf("failed to reconnect SPI at %s: %w", f, err)
	}
	b.conn = conn
	return nil
}

// Close releases the SPI port.
func (b *Bus) Close() error {
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("failed to close SPI port %q: %w", b.portName, err)
	}
	return nil
}

// CSNPin wraps a GPIO output as the chip-select line.
type CSNPin struct {
	pin gpio.PinOut
}

// NewCSNPin looks up a GPIO by name and configures it as the chip-select
// output, parked high.
func NewCSNPin(name string) (*CSNPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no GPIO pin named %q", name)
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to configure CSN pin %q: %w", name, err)
	}
	return &CSNPin{pin: pin}, nil
}

// Out drives the chip-select level.
func (p *CSNPin) Out(high bool) error {
	if err := p.pin.Out(gpio.Level(high)); err != nil {
		return fmt.Errorf("failed to drive CSN: %w", err)
	}
	return nil
}

// CardDetectPin wraps a GPIO input as the card-detect line.
type CardDetectPin struct {
	pin gpio.PinIO
}

// NewCardDetectPin looks up a GPIO by name and configures it as the
// card-detect input with a pull-up, watching both edges.
func NewCardDetectPin(name string) (*CardDetectPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no GPIO pin named %q", name)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("failed to configure card-detect pin %q: %w", name, err)
	}
	return &CardDetectPin{pin: pin}, nil
}

// Read returns the line level; false means a card is seated.
func (p *CardDetectPin) Read() bool {
	return bool(p.pin.Read())
}

// WaitForEdge blocks until the level changes or the timeout elapses.
func (p *CardDetectPin) WaitForEdge(timeout time.Duration) bool {
	return p.pin.WaitForEdge(timeout)
}

// Connect opens the SPI port and both GPIO lines and binds a Card to
// them. The empty port name selects the first available SPI port.
func Connect(portName, csnName, detectName string, opts ...sdcard.Option) (*sdcard.Card, error) {
	bus, err := New(portName, 200*physic.KiloHertz)
	if err != nil {
		return nil, err
	}

	csn, err := NewCSNPin(csnName)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	detect, err := NewCardDetectPin(detectName)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	card, err := sdcard.New(bus, csn, detect, opts...)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return card, nil
}
