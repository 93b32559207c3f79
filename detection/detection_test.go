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

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDevicePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		expected string
	}{
		{"SPI0.0", "/dev/spidev0.0"},
		{"SPI1.2", "/dev/spidev1.2"},
		{"/dev/spidev0.1", "/dev/spidev0.1"},
		{"custom", "custom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, devicePath(tt.name))
	}
}

func TestDeviceInfoString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "SPI0.0 (accessible)",
		DeviceInfo{Name: "SPI0.0", Accessible: true}.String())
	assert.Equal(t, "SPI0.1 (no access)",
		DeviceInfo{Name: "SPI0.1"}.String())
}
