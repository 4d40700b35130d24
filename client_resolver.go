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
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/miekg/dns"

	"github.com/nightwave-systems/recurdns/internal/util"
)

// ClientResolver sends a single question to a small, fixed list of name
// servers, retrying and rotating between them on transient failure. It is
// the resolver's stub-facing front door: the iterative resolver uses one
// internally for every single-hop exchange, and callers who already know
// their servers (a configured forwarder, a just-resolved NS address) can use
// one directly instead of going through the full iterative machinery.
type ClientResolver struct {
	servers          []NameServer
	protocol         Protocol
	proxy            ProxyDispatcher
	retriesPerServer int
	timeout          time.Duration
}

// NewClientResolver builds a ClientResolver over servers. retriesPerServer
// is R from the design: the resolver will attempt up to
// R * len(servers) exchanges before giving up.
func NewClientResolver(servers []NameServer, protocol Protocol, proxy ProxyDispatcher, retriesPerServer int, timeout time.Duration) (*ClientResolver, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("resolver: client resolver requires at least one name server")
	}
	if retriesPerServer <= 0 {
		retriesPerServer = defaultRetriesPerServer
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cp := make([]NameServer, len(servers))
	copy(cp, servers)

	return &ClientResolver{
		servers:          cp,
		protocol:         protocol,
		proxy:            proxy,
		retriesPerServer: retriesPerServer,
		timeout:          timeout,
	}, nil
}

// Exchange resolves a single question, starting from a CSPRNG-chosen index
// into the server list and advancing round-robin on every attempt. Each
// attempt carries a fresh random 16-bit message ID. A UDP response that
// comes back truncated is immediately retried against the same server over
// TCP, per RFC 1035 section 4.2.1, before moving on to the next server.
func (c *ClientResolver) Exchange(ctx context.Context, q dns.Question) (*dns.Msg, error) {
	attempts := c.retriesPerServer * len(c.servers)
	if attempts <= 0 {
		attempts = 1
	}

	idx := util.RandIntn(len(c.servers))

	resp, err := retry.DoWithData(func() (*dns.Msg, error) {
		ns := c.servers[idx]
		idx = (idx + 1) % len(c.servers)

		return c.exchangeOnce(ctx, ns, q)
	},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.RetryIf(isTemporary),
		retry.LastErrorOnly(true),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(0),
	)
	if err != nil {
		return nil, &NoResponseError{Question: q, Cause: err}
	}

	return resp, nil
}

func (c *ClientResolver) exchangeOnce(ctx context.Context, ns NameServer, q dns.Question) (*dns.Msg, error) {
	if !ns.HasEndpoint() && c.proxy == nil {
		ir, err := NewIterativeResolver(nil)
		if err != nil {
			return nil, err
		}
		if err := ns.ResolveEndpoint(ctx, ir, newMemCache(), nil, false, c.protocol, c.retriesPerServer); err != nil {
			return nil, err
		}
	}

	protocol := c.protocol
	if c.proxy != nil && protocol == ProtocolUDP && !c.proxy.UDPAvailable() {
		protocol = ProtocolTCP
	}

	req := new(dns.Msg)
	req.Id = util.RandUint16()
	req.RecursionDesired = !protocol.IsForwarderOnly()
	req.Question = []dns.Question{q}

	transport := newTransport(protocol, c.proxy, c.timeout)

	resp, err := transport.Exchange(ctx, ns, req)
	if err != nil {
		return nil, err
	}

	if resp.Truncated && protocol == ProtocolUDP {
		tcp := newTransport(ProtocolTCP, c.proxy, c.timeout)
		req.Id = util.RandUint16Except(req.Id)
		resp, err = tcp.Exchange(ctx, ns, req)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}
