// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package resolver

import "net/netip"

// rootServersV4 and rootServersV6 are the IANA root hints, keyed by the
// canonical labels a.root-servers.net through m.root-servers.net. They are
// immutable package-level constants; Roots returns copies so that
// callers (and the iterative resolver, which shuffles and rewrites its
// working copy) never mutate the shared tables.
var rootServersV4 = [13]NameServer{
	{Host: "a.root-servers.net.", Endpoint: netip.MustParseAddrPort("198.41.0.4:53")},
	{Host: "b.root-servers.net.", Endpoint: netip.MustParseAddrPort("170.247.170.2:53")},
	{Host: "c.root-servers.net.", Endpoint: netip.MustParseAddrPort("192.33.4.12:53")},
	{Host: "d.root-servers.net.", Endpoint: netip.MustParseAddrPort("199.7.91.13:53")},
	{Host: "e.root-servers.net.", Endpoint: netip.MustParseAddrPort("192.203.230.10:53")},
	{Host: "f.root-servers.net.", Endpoint: netip.MustParseAddrPort("192.5.5.241:53")},
	{Host: "g.root-servers.net.", Endpoint: netip.MustParseAddrPort("192.112.36.4:53")},
	{Host: "h.root-servers.net.", Endpoint: netip.MustParseAddrPort("198.97.190.53:53")},
	{Host: "i.root-servers.net.", Endpoint: netip.MustParseAddrPort("192.36.148.17:53")},
	{Host: "j.root-servers.net.", Endpoint: netip.MustParseAddrPort("192.58.128.30:53")},
	{Host: "k.root-servers.net.", Endpoint: netip.MustParseAddrPort("193.0.14.129:53")},
	{Host: "l.root-servers.net.", Endpoint: netip.MustParseAddrPort("199.7.83.42:53")},
	{Host: "m.root-servers.net.", Endpoint: netip.MustParseAddrPort("202.12.27.33:53")},
}

var rootServersV6 = [13]NameServer{
	{Host: "a.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:503:ba3e::2:30]:53")},
	{Host: "b.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2801:1b8:10::b]:53")},
	{Host: "c.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:500:2::c]:53")},
	{Host: "d.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:500:2d::d]:53")},
	{Host: "e.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:500:a8::e]:53")},
	{Host: "f.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:500:2f::f]:53")},
	{Host: "g.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:500:12::d0d]:53")},
	{Host: "h.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:500:1::53]:53")},
	{Host: "i.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:7fe::53]:53")},
	{Host: "j.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:503:c27::2:30]:53")},
	{Host: "k.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:7fd::1]:53")},
	{Host: "l.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:500:9f::42]:53")},
	{Host: "m.root-servers.net.", Endpoint: netip.MustParseAddrPort("[2001:dc3::35]:53")},
}

// Roots returns a fresh copy of the root name server hints. preferIPv6
// selects the IPv6 literal for each root label instead of the IPv4 one; the
// resolver never mixes the two tables, matching the "two immutable tables of
// 13 name servers" contract.
func Roots(preferIPv6 bool) []NameServer {
	var src [13]NameServer
	if preferIPv6 {
		src = rootServersV6
	} else {
		src = rootServersV4
	}

	out := make([]NameServer, len(src))
	copy(out, src[:])
	return out
}
