// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package resolver

import (
	"fmt"

	"github.com/nightwave-systems/recurdns/internal/dnsconfig"
)

// defaultResolvConf is the conventional location of the system resolver
// configuration on Unix; on Windows, ReadConfig ignores the filename and
// returns a fixed default.
const defaultResolvConf = "/etc/resolv.conf"

// SystemNameServers reads the operating system's configured name servers
// (resolv.conf on Unix), returning them as a ready-to-use NameServer list
// for WithServers. It's a convenience entry point for building a
// ClientResolver or IterativeResolver that forwards to whatever the host OS
// is already configured to use, instead of iterating from the roots.
func SystemNameServers() ([]NameServer, error) {
	cfg, err := dnsconfig.ReadConfig(defaultResolvConf)
	if err != nil && cfg == nil {
		return nil, fmt.Errorf("resolver: reading system DNS configuration: %w", err)
	}

	servers := make([]NameServer, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		ns, err := ParseNameServer(s, ProtocolUDP)
		if err != nil {
			continue
		}
		servers = append(servers, ns)
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("resolver: no usable system name servers found")
	}

	return servers, nil
}
