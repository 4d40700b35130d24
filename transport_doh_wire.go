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
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/miekg/dns"
)

// dohWireTransport implements DNS over HTTPS using the wire format, RFC
// 8484: a POST of application/dns-message to the server's DoH URL.
type dohWireTransport struct {
	proxy   ProxyDispatcher
	timeout time.Duration
}

func (t *dohWireTransport) Exchange(ctx context.Context, ns NameServer, req *dns.Msg) (*dns.Msg, error) {
	if ns.DoHURL == nil {
		return nil, &TransportError{
			Protocol: ProtocolHTTPSWire,
			Server:   ns.String(),
			Err:      fmt.Errorf("name server has no DoH URL configured"),
		}
	}

	if t.timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	packed, err := req.Pack()
	if err != nil {
		return nil, &TransportError{Protocol: ProtocolHTTPSWire, Server: ns.String(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ns.DoHURL.String(), bytes.NewReader(packed))
	if err != nil {
		return nil, &TransportError{Protocol: ProtocolHTTPSWire, Server: ns.String(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/dns-message")
	httpReq.Header.Set("Accept", "application/dns-message")

	client := t.httpClient()

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Protocol: ProtocolHTTPSWire, Server: ns.String(), Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Protocol: ProtocolHTTPSWire,
			Server:   ns.String(),
			Err:      fmt.Errorf("unexpected HTTP status %d", httpResp.StatusCode),
		}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Protocol: ProtocolHTTPSWire, Server: ns.String(), Err: err}
	}

	reply := new(dns.Msg)
	if err := reply.Unpack(body); err != nil {
		return nil, &TransportError{Protocol: ProtocolHTTPSWire, Server: ns.String(), Err: err}
	}

	return reply, nil
}

func (t *dohWireTransport) httpClient() *http.Client {
	transport := &http.Transport{}
	if t.proxy != nil {
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return t.proxy.CreateTunnel(ctx, remoteEndpointOrZero(addr), true, false)
		}
	}
	return &http.Client{Transport: transport, Timeout: t.timeout}
}
