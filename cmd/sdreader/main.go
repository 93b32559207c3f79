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

// sdreader monitors an SD card slot on an SPI port, reports lifecycle
// events, and dumps the card's partition table when it becomes ready.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sdcard "github.com/tessel/sdcard"
	"github.com/tessel/sdcard/detection"
	"github.com/tessel/sdcard/transport/spi"
)

// Package-level flag variables
var (
	flagPort   string
	flagCSN    string
	flagDetect string
	flagRead   int
	flagList   bool
	flagDebug  bool
)

func init() {
	flag.StringVar(&flagPort, "port", "", "SPI port name (first accessible port if empty)")
	flag.StringVar(&flagCSN, "csn", "GPIO8", "chip-select GPIO name")
	flag.StringVar(&flagDetect, "detect", "GPIO25", "card-detect GPIO name")
	flag.IntVar(&flagRead, "read", -1, "also hex-dump this block once the card is ready")
	flag.BoolVar(&flagList, "list", false, "list candidate SPI ports and exit")
	flag.BoolVar(&flagDebug, "debug", false, "enable debug output")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	if flagDebug {
		sdcard.SetDebugEnabled(true)
	}

	if flagList {
		return listPorts()
	}

	port := flagPort
	if port == "" {
		var err error
		if port, err = pickPort(); err != nil {
			return err
		}
		fmt.Printf("using SPI port %s\n", port)
	}

	card, err := spi.Connect(port, flagCSN, flagDetect)
	if err != nil {
		return err
	}
	defer func() { _ = card.Close() }()

	card.OnInserted = func() { fmt.Println("card inserted") }
	card.OnRemoved = func() { fmt.Println("card removed") }
	card.OnError = func(err error) { fmt.Println("card error:", err) }
	card.OnReady = func() { dumpCard(card) }

	if err := card.Start(); err != nil {
		return err
	}

	fmt.Println("waiting for card, press ctrl-c to exit")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func listPorts() error {
	devices, err := detection.DetectAll()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.New("no SPI ports found")
	}
	for _, d := range devices {
		fmt.Println(d)
	}
	return nil
}

func pickPort() (string, error) {
	devices, err := detection.DetectAll()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.Accessible {
			return d.Name, nil
		}
	}
	return "", errors.New("no accessible SPI port found")
}

func dumpCard(card *sdcard.Card) {
	fmt.Printf("card ready, type %s\n", card.Type())

	partitions, err := card.Filesystems()
	if err != nil {
		fmt.Println("failed to read partition table:", err)
		return
	}
	if len(partitions) == 0 {
		fmt.Println("no partitions")
	}
	for i, p := range partitions {
		fmt.Printf("  partition %d: %s\n", i, p)
	}

	if flagRead >= 0 {
		block, err := card.ReadBlock(uint32(flagRead))
		if err != nil {
			fmt.Printf("failed to read block %d: %v\n", flagRead, err)
			return
		}
		fmt.Printf("block %d:\n%s", flagRead, hex.Dump(block))
	}
}
