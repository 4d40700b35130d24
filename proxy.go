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
	"net"
	"net/netip"
)

// ProxyDispatcher is the external contract a caller supplies when name
// server traffic must be tunneled rather than dialed directly, e.g. an SMTP
// client resolving MX targets through a SOCKS or HTTP CONNECT proxy. The
// resolver never implements tunneling mechanics itself; it only calls
// through this interface when one is configured.
type ProxyDispatcher interface {
	// Connect opens a connection to remoteEndpoint through the proxy,
	// returning a net.Conn the transport can read and write framed DNS
	// messages over.
	Connect(ctx context.Context, remoteEndpoint netip.AddrPort) (net.Conn, error)

	// UDPAvailable reports whether the proxy can relay UDP datagrams. When
	// it cannot, the client resolver forces every exchange through this
	// proxy onto TCP instead of trying UDP first.
	UDPAvailable() bool

	// CreateTunnel opens a connection that is additionally wrapped in TLS
	// when tlsWrap is set, with certificate verification skipped when
	// ignoreCert is set. It exists for callers (e.g. an SMTP client) that
	// need the same tunnel the resolver used for its own DoH queries.
	CreateTunnel(ctx context.Context, remoteEndpoint netip.AddrPort, tlsWrap bool, ignoreCert bool) (net.Conn, error)
}
