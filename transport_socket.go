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
 * Copyright (c) 2012 The Go Authors. All rights reserved.
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

package resolver

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/miekg/dns"
)

// socketTransport implements UDP, TCP, and DNS over TLS: the three
// protocols that exchange the raw wire format over a socket, differing only
// in framing (UDP vs TCP length-prefix) and whether the connection is
// wrapped in a TLS handshake first.
type socketTransport struct {
	net     string // "udp" or "tcp"
	tls     bool
	proxy   ProxyDispatcher
	timeout time.Duration
}

func (t *socketTransport) Exchange(ctx context.Context, ns NameServer, req *dns.Msg) (*dns.Msg, error) {
	if t.timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	conn, err := t.dial(ctx, ns)
	if err != nil {
		return nil, &TransportError{Protocol: t.protocol(), Server: ns.String(), Err: err}
	}
	defer conn.Close()

	if t.tls {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: ns.Host})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = tlsConn.Close()
			return nil, &TransportError{Protocol: t.protocol(), Server: ns.String(), Err: err}
		}
		conn = tlsConn
	}

	client := &dns.Client{Net: t.net, Timeout: t.timeout}

	reply, _, err := client.ExchangeWithConn(req, &dns.Conn{Conn: conn})
	if err != nil {
		return nil, &TransportError{Protocol: t.protocol(), Server: ns.String(), Err: err}
	}

	return reply, nil
}

func (t *socketTransport) dial(ctx context.Context, ns NameServer) (net.Conn, error) {
	if t.proxy != nil {
		if t.net == "udp" && !t.proxy.UDPAvailable() {
			// The proxy can't relay UDP; the client resolver is expected
			// to have already selected TCP for this server, but fall back
			// defensively rather than silently drop to a direct dial.
			return t.proxy.Connect(ctx, ns.Endpoint)
		}
		return t.proxy.Connect(ctx, ns.Endpoint)
	}

	d := &net.Dialer{}
	return d.DialContext(ctx, t.net, ns.Endpoint.String())
}

func (t *socketTransport) protocol() Protocol {
	switch {
	case t.tls:
		return ProtocolTLS
	case t.net == "tcp":
		return ProtocolTCP
	default:
		return ProtocolUDP
	}
}
