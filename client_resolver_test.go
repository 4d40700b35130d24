// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package resolver_test

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/nightwave-systems/recurdns"
)

// startUDPServer binds a DNS server to an ephemeral loopback UDP port and
// serves it with handler until t's cleanup runs. It returns the bound
// endpoint.
func startUDPServer(t *testing.T, handler dns.HandlerFunc) netip.AddrPort {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().(*net.UDPAddr).AddrPort()
}

// startTCPServer binds a DNS server to the given loopback port over TCP.
// Used alongside startUDPServer to exercise the truncation-triggers-TCP-retry
// path against a single logical name server.
func startTCPServer(t *testing.T, port uint16, handler dns.HandlerFunc) {
	t.Helper()

	ln, err := net.Listen("tcp", netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), port).String())
	require.NoError(t, err)

	srv := &dns.Server{Listener: ln, Handler: handler}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
}

func answerA(name string, ip string) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
			A:   net.ParseIP(ip),
		})
		_ = w.WriteMsg(m)
	}
}

func TestClientResolverExchangeSuccess(t *testing.T) {
	endpoint := startUDPServer(t, answerA("www.example.com.", "203.0.113.10"))

	cr, err := resolver.NewClientResolver(
		[]resolver.NameServer{{Host: "ns1.test.", Endpoint: endpoint}},
		resolver.ProtocolUDP, nil, 2, time.Second)
	require.NoError(t, err)

	resp, err := cr.Exchange(context.Background(), dns.Question{
		Name: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET,
	})
	require.NoError(t, err)
	require.Len(t, resp.Answer, 1)
	require.Equal(t, "203.0.113.10", resp.Answer[0].(*dns.A).A.String())
}

func TestClientResolverTruncationRetriesOverTCP(t *testing.T) {
	udpEndpoint := startUDPServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Truncated = true
		_ = w.WriteMsg(m)
	})
	startTCPServer(t, udpEndpoint.Port(), answerA("www.example.com.", "203.0.113.20"))

	cr, err := resolver.NewClientResolver(
		[]resolver.NameServer{{Host: "ns1.test.", Endpoint: udpEndpoint}},
		resolver.ProtocolUDP, nil, 2, time.Second)
	require.NoError(t, err)

	resp, err := cr.Exchange(context.Background(), dns.Question{
		Name: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET,
	})
	require.NoError(t, err)
	require.False(t, resp.Truncated)
	require.Len(t, resp.Answer, 1)
	require.Equal(t, "203.0.113.20", resp.Answer[0].(*dns.A).A.String())
}

func TestClientResolverExhaustsBudgetOnUnreachableServer(t *testing.T) {
	unreachable := netip.MustParseAddrPort("127.0.0.1:1")

	cr, err := resolver.NewClientResolver(
		[]resolver.NameServer{{Host: "ns1.test.", Endpoint: unreachable}},
		resolver.ProtocolUDP, nil, 1, 200*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = cr.Exchange(ctx, dns.Question{Name: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET})
	require.Error(t, err)
}

func TestClientResolverResolvesEndpointWhenMissing(t *testing.T) {
	cr, err := resolver.NewClientResolver(
		[]resolver.NameServer{{Host: "ns.example.test."}},
		resolver.ProtocolUDP, nil, 1, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// ns.example.test. carries no Endpoint and no proxy is configured, so
	// exchangeOnce must try to resolve it (via ResolveEndpoint, starting
	// from the root servers) before ever dialing it directly. There are no
	// reachable roots in the test sandbox, so this always ends in an error,
	// but it must be a clean resolution error rather than a hang, a panic,
	// or a dial straight to the empty endpoint.
	_, err = cr.Exchange(ctx, dns.Question{Name: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET})
	require.Error(t, err)
}

func TestNewClientResolverRejectsEmptyServerList(t *testing.T) {
	_, err := resolver.NewClientResolver(nil, resolver.ProtocolUDP, nil, 2, time.Second)
	require.Error(t, err)
}
