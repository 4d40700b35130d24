//go:build !windows

// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 *
 * Portions of this file are based on code originally from the Go project,
 *
 * Copyright (c) 2024 The Go Authors. All rights reserved.
 *
 * Redistribution and use in source and binary forms, with or without
 * modification, are permitted provided that the following conditions are
 * met:
 *
 *   * Redistributions of source code must retain the above copyright
 *     notice, this list of conditions and the following disclaimer.
 *   * Redistributions in binary form must reproduce the above
 *     copyright notice, this list of conditions and the following disclaimer
 *     in the documentation and/or other materials provided with the
 *     distribution.
 *   * Neither the name of Google Inc. nor the names of its
 *     contributors may be used to endorse or promote products derived from
 *     this software without specific prior written permission.
 *
 * THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
 * "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
 * LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
 * A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
 * OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
 * SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
 * LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
 * DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
 * THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
 * (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
 * OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.
 */

package dnsconfig

import (
	"bufio"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReadConfig reads the system DNS config from filename, conventionally
// /etc/resolv.conf. See resolv.conf(5) on a Linux machine.
func ReadConfig(filename string) (*Config, error) {
	conf := &Config{
		NDots:    1,
		Timeout:  5 * time.Second,
		Attempts: 2,
	}

	f, err := os.Open(filename)
	if err != nil {
		conf.Servers = defaultNS
		conf.Search = dnsDefaultSearch()
		return conf, err
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		conf.MTime = fi.ModTime()
	} else {
		conf.Servers = defaultNS
		conf.Search = dnsDefaultSearch()
		return conf, err
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 1 {
			continue
		}

		switch fields[0] {
		case "nameserver":
			if len(fields) > 1 && len(conf.Servers) < 3 {
				if _, err := netip.ParseAddr(fields[1]); err == nil {
					conf.Servers = append(conf.Servers, net.JoinHostPort(fields[1], "53"))
				}
			}

		case "domain":
			if len(fields) > 1 {
				conf.Search = []string{ensureRooted(fields[1])}
			}

		case "search":
			conf.Search = make([]string, 0, len(fields)-1)
			for _, f := range fields[1:] {
				name := ensureRooted(f)
				if name == "." {
					continue
				}
				conf.Search = append(conf.Search, name)
			}

		case "options":
			for _, s := range fields[1:] {
				switch {
				case strings.HasPrefix(s, "ndots:"):
					if n, err := strconv.Atoi(s[6:]); err == nil {
						conf.NDots = clamp(n, 0, 15)
					}
				case strings.HasPrefix(s, "timeout:"):
					if n, err := strconv.Atoi(s[8:]); err == nil {
						if n < 1 {
							n = 1
						}
						conf.Timeout = time.Duration(n) * time.Second
					}
				case strings.HasPrefix(s, "attempts:"):
					if n, err := strconv.Atoi(s[9:]); err == nil {
						if n < 1 {
							n = 1
						}
						conf.Attempts = n
					}
				case s == "rotate":
					conf.Rotate = true
				case s == "single-request", s == "single-request-reopen":
					// By default, independent A and AAAA lookups can race
					// in parallel; this option forces them sequential to
					// avoid a conntrack issue some kernels have with two
					// outbound UDP queries sharing a source port.
					conf.SingleRequest = true
				case s == "use-vc", s == "usevc", s == "tcp":
					conf.UseTCP = true
				case s == "trust-ad":
					conf.TrustAD = true
				case s == "edns0":
					// EDNS is always used; nothing to toggle.
				case s == "no-reload":
					conf.NoReload = true
				default:
					conf.UnknownOpt = true
				}
			}

		case "lookup":
			conf.Lookup = fields[1:]

		default:
			conf.UnknownOpt = true
		}
	}
	if err := scanner.Err(); err != nil {
		return conf, err
	}

	if len(conf.Servers) == 0 {
		conf.Servers = defaultNS
	}
	if len(conf.Search) == 0 {
		conf.Search = dnsDefaultSearch()
	}

	return conf, nil
}

func dnsDefaultSearch() []string {
	hn, err := getHostname()
	if err != nil {
		return nil
	}
	if i := strings.IndexByte(hn, '.'); i >= 0 && i < len(hn)-1 {
		return []string{ensureRooted(hn[i+1:])}
	}
	return nil
}

func ensureRooted(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s
	}
	return s + "."
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
