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

//go:build linux

package detection

import "golang.org/x/sys/unix"

// accessible checks the device node for read/write permission without
// opening it.
func accessible(path string) bool {
	return unix.Access(path, unix.R_OK|unix.W_OK) == nil
}
