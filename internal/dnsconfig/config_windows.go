//go:build windows

// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package dnsconfig

import "time"

// ReadConfig returns the default resolver configuration on Windows.
// Discovering per-adapter name servers requires walking the system's network
// interface configuration, which is out of scope for this resolver; callers
// on Windows that need the real adapter-assigned servers should supply them
// explicitly via Config.Roots instead of relying on system discovery.
func ReadConfig(filename string) (*Config, error) {
	return &Config{
		Servers:  defaultNS,
		NDots:    1,
		Timeout:  5 * time.Second,
		Attempts: 2,
	}, nil
}
