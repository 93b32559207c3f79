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
	"github.com/tessel/sdcard/internal/syncutil"
)

// serializer owns the SPI peripheral and the chip-select line. All bus
// traffic funnels through one goroutine consuming a request channel, so
// transactions execute strictly in arrival order and never overlap.
//
// A transaction body receives a *Txn and composes nested operations by
// passing it down; there is no hidden "already locked" state.
type serializer struct {
	spi  SPI
	csn  OutputPin
	reqs chan txnRequest

	mu     syncutil.Mutex
	closed bool
}

type txnRequest struct {
	fn   func(*Txn) error
	done chan error
}

func newSerializer(spi SPI, csn OutputPin) *serializer {
	s := &serializer{
		spi:  spi,
		csn:  csn,
		reqs: make(chan txnRequest),
	}
	go s.run()
	return s
}

func (s *serializer) run() {
	for req := range s.reqs {
		req.done <- s.execute(req.fn)
	}
}

// execute runs one transaction body between chip-select assert and release.
// The release path always runs, error or not: CSN goes high and one extra
// 0xFF byte is clocked out so the card can finish its last operation.
func (s *serializer) execute(fn func(*Txn) error) error {
	tx := &Txn{spi: s.spi, csn: s.csn}

	if err := tx.assertCS(); err != nil {
		return err
	}

	err := fn(tx)

	if relErr := tx.deassertCS(); relErr != nil && err == nil {
		err = relErr
	}
	if relErr := tx.Send([]byte{0xFF}); relErr != nil && err == nil {
		err = relErr
	}

	return err
}

// Transaction enqueues fn and blocks until it has run. Requests are served
// FIFO; fn must not retain the *Txn beyond its return.
func (s *serializer) Transaction(fn func(*Txn) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	req := txnRequest{fn: fn, done: make(chan error, 1)}
	s.reqs <- req
	s.mu.Unlock()

	return <-req.done
}

// Close stops the serializer. In-flight work completes; later calls to
// Transaction fail with ErrClosed.
func (s *serializer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.reqs)
	}
}

// Txn is the handle to the bus while a transaction holds it. It is only
// valid inside the transaction body it was passed to.
type Txn struct {
	spi SPI
	csn OutputPin
}

// Transfer performs a full-duplex exchange of equal-length buffers.
func (t *Txn) Transfer(w, r []byte) error {
	if err := t.spi.Tx(w, r); err != nil {
		return &WireError{Op: "transfer", Err: err}
	}
	return nil
}

// Send writes p, discarding whatever the card clocks back.
func (t *Txn) Send(p []byte) error {
	return t.Transfer(p, nil)
}

// Receive clocks out n filler 0xFF bytes and returns what the card sent.
func (t *Txn) Receive(n int) ([]byte, error) {
	w := make([]byte, n)
	for i := range w {
		w[i] = 0xFF
	}
	r := make([]byte, n)
	if err := t.Transfer(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ReceiveByte clocks one filler byte and returns the card's answer.
func (t *Txn) ReceiveByte() (byte, error) {
	b, err := t.Receive(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (t *Txn) assertCS() error {
	if err := t.csn.Out(false); err != nil {
		return &WireError{Op: "csn assert", Err: err}
	}
	return nil
}

func (t *Txn) deassertCS() error {
	if err := t.csn.Out(true); err != nil {
		return &WireError{Op: "csn deassert", Err: err}
	}
	return nil
}
