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

// Package detection enumerates SPI ports an SD card slot could be wired
// to. The CLI and auto-connect paths use it to pick a port when none is
// named explicitly.
package detection

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DeviceInfo describes one candidate SPI port.
type DeviceInfo struct {
	// Name is the periph.io registry name, e.g. "SPI0.0".
	Name string
	// Aliases are alternate registry names for the same port.
	Aliases []string
	// Accessible reports whether the backing device node can be opened
	// by this process.
	Accessible bool
}

func (d DeviceInfo) String() string {
	state := "accessible"
	if !d.Accessible {
		state = "no access"
	}
	return fmt.Sprintf("%s (%s)", d.Name, state)
}

// DetectAll lists the SPI ports registered on this host.
func DetectAll() ([]DeviceInfo, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	refs := spireg.All()
	devices := make([]DeviceInfo, 0, len(refs))
	for _, ref := range refs {
		devices = append(devices, DeviceInfo{
			Name:       ref.Name,
			Aliases:    ref.Aliases,
			Accessible: accessible(devicePath(ref.Name)),
		})
	}
	return devices, nil
}

// devicePath maps a registry name like "SPI0.1" to the Linux device node
// it is served by. Names that don't follow the pattern map to themselves.
func devicePath(name string) string {
	if rest, ok := strings.CutPrefix(name, "SPI"); ok {
		return "/dev/spidev" + rest
	}
	return name
}
