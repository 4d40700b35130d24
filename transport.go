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
	"context"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// Transport carries a single DNS request to a single name server and
// returns its response. Each of the five Protocol variants maps to one
// Transport implementation (UDP, TCP and TLS share socketTransport); nothing
// in the resolver depends on which one it got beyond this interface.
type Transport interface {
	// Exchange sends req to ns and returns its response, or an error
	// wrapped in *TransportError. Implementations must honor ctx
	// cancellation/deadline.
	Exchange(ctx context.Context, ns NameServer, req *dns.Msg) (*dns.Msg, error)
}

// newTransport returns the Transport implementation for protocol, dialing
// through proxy when one is configured.
func newTransport(protocol Protocol, proxy ProxyDispatcher, timeout time.Duration) Transport {
	switch protocol {
	case ProtocolUDP:
		return &socketTransport{net: "udp", proxy: proxy, timeout: timeout}
	case ProtocolTCP:
		return &socketTransport{net: "tcp", proxy: proxy, timeout: timeout}
	case ProtocolTLS:
		return &socketTransport{net: "tcp", tls: true, proxy: proxy, timeout: timeout}
	case ProtocolHTTPSWire:
		return &dohWireTransport{proxy: proxy, timeout: timeout}
	case ProtocolHTTPSJSON:
		return &dohJSONTransport{proxy: proxy, timeout: timeout}
	default:
		return &socketTransport{net: "udp", proxy: proxy, timeout: timeout}
	}
}

// remoteEndpointOrZero parses a dial address of the form host:port into a
// netip.AddrPort, for handing off to a ProxyDispatcher. A DoH server is
// addressed by hostname, not literal IP, so this commonly returns the zero
// value; CreateTunnel implementations that need a literal address are
// expected to resolve the host themselves, the same as a direct HTTP
// transport's DialContext would.
func remoteEndpointOrZero(addr string) netip.AddrPort {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return netip.AddrPort{}
	}
	return ap
}
