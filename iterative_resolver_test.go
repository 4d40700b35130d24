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
	"errors"
	"net"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/nightwave-systems/recurdns"
)

func TestResolveAnswersDirectlyFromServer(t *testing.T) {
	endpoint := startUDPServer(t, answerA("www.example.com.", "203.0.113.30"))

	ir, err := resolver.NewIterativeResolver(nil)
	require.NoError(t, err)

	resp, err := ir.Resolve(context.Background(), dns.Question{
		Name: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET,
	}, resolver.WithServers([]resolver.NameServer{{Host: "ns1.test.", Endpoint: endpoint}}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Answer, 1)
	require.Equal(t, "203.0.113.30", resp.Msg.Answer[0].(*dns.A).A.String())
	require.Equal(t, 1, resp.Hops)
}

func TestResolveReturnsNameError(t *testing.T) {
	endpoint := startUDPServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeNameError)
		_ = w.WriteMsg(m)
	})

	ir, err := resolver.NewIterativeResolver(nil)
	require.NoError(t, err)

	resp, err := ir.Resolve(context.Background(), dns.Question{
		Name: "does-not-exist.test.", Qtype: dns.TypeA, Qclass: dns.ClassINET,
	}, resolver.WithServers([]resolver.NameServer{{Host: "ns1.test.", Endpoint: endpoint}}))
	require.Error(t, err)

	var nameErr *resolver.NameErrorError
	require.True(t, errors.As(err, &nameErr))
	require.Equal(t, dns.RcodeNameError, resp.Msg.Rcode)
}

func TestResolveStopsOnSelfReferentialEmptyResponse(t *testing.T) {
	endpoint := startUDPServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Ns = append(m.Ns, &dns.NS{
			Hdr: dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 60},
			Ns:  "ns1.test.",
		})
		_ = w.WriteMsg(m)
	})

	ir, err := resolver.NewIterativeResolver(nil)
	require.NoError(t, err)

	resp, err := ir.Resolve(context.Background(), dns.Question{
		Name: "empty.test.", Qtype: dns.TypeA, Qclass: dns.ClassINET,
	}, resolver.WithServers([]resolver.NameServer{{Host: "ns1.test.", Endpoint: endpoint}}))
	require.NoError(t, err)
	require.Empty(t, resp.Msg.Answer)
}

func TestResolveBailsOutAtHopBudget(t *testing.T) {
	endpoint := startUDPServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Ns = append(m.Ns, &dns.NS{
			Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 60},
			Ns:  "ns2.example.com.",
		})
		m.Extra = append(m.Extra, &dns.A{
			Hdr: dns.RR_Header{Name: "ns2.example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
			A:   net.ParseIP("198.51.100.1"),
		})
		_ = w.WriteMsg(m)
	})

	ir, err := resolver.NewIterativeResolver(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := ir.Resolve(ctx, dns.Question{
		Name: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET,
	},
		resolver.WithServers([]resolver.NameServer{{Host: "ns1.test.", Endpoint: endpoint}}),
		resolver.WithHopBudget(1),
	)
	require.NoError(t, err)
	require.Empty(t, resp.Msg.Answer)
	require.NotEmpty(t, resp.Msg.Ns)
}

// fakeCache is a minimal in-memory Cache used to verify the cache-check
// branch short-circuits before any name server is ever contacted.
type fakeCache struct {
	mu   sync.Mutex
	resp *dns.Msg
}

func (c *fakeCache) Query(request *dns.Msg) (*dns.Msg, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resp, nil
}

func (c *fakeCache) CacheResponse(response *dns.Msg) error {
	return nil
}

func TestResolveReturnsCacheHitWithoutContactingServers(t *testing.T) {
	cached := new(dns.Msg)
	cached.SetQuestion("www.example.com.", dns.TypeA)
	cached.Response = true
	cached.Answer = append(cached.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: "www.example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
		A:   net.ParseIP("203.0.113.99"),
	})

	ir, err := resolver.NewIterativeResolver(nil)
	require.NoError(t, err)

	// A name server nobody is listening on: if the cache check didn't
	// short-circuit, this would block until the per-exchange timeout.
	unreachable := netip.MustParseAddrPort("127.0.0.1:1")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	resp, err := ir.Resolve(ctx, dns.Question{Name: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET},
		resolver.WithCache(&fakeCache{resp: cached}),
		resolver.WithServers([]resolver.NameServer{{Host: "ns1.test.", Endpoint: unreachable}}),
	)
	require.NoError(t, err)
	require.Len(t, resp.Msg.Answer, 1)
	require.Equal(t, "203.0.113.99", resp.Msg.Answer[0].(*dns.A).A.String())
}

// deferredCache starts with no cached answer and lets a fake server handler
// populate one mid-resolution. It answers a Query only once it holds a
// response whose question matches the request, modeling a just-in-time
// cache fill racing a suspended resolution's resume.
type deferredCache struct {
	mu   sync.Mutex
	resp *dns.Msg
}

func (c *deferredCache) set(resp *dns.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resp = resp
}

func (c *deferredCache) Query(request *dns.Msg) (*dns.Msg, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resp == nil || len(request.Question) != 1 || !strings.EqualFold(c.resp.Question[0].Name, request.Question[0].Name) {
		return nil, nil
	}
	return c.resp, nil
}

func (c *deferredCache) CacheResponse(*dns.Msg) error {
	return nil
}

// TestResolveSuspendsAndResumesOnGlueLessReferral drives the one scenario
// that exercises the frame stack's push/pop: a referral naming a name
// server with no glue in the additional section, forcing Resolve to
// suspend the original query, resolve the name server's own address, and
// resume. The suspended lookup's answer never carries a dialable endpoint
// for the resumed query to actually reach (its glue address is fabricated),
// so the test relies on the resumed frame finding its answer in the cache
// instead of over the wire, proving the resume landed back on the original
// question rather than asserting on a second live exchange.
func TestResolveSuspendsAndResumesOnGlueLessReferral(t *testing.T) {
	cache := &deferredCache{}

	endpoint := startUDPServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		q := r.Question[0]
		switch {
		case strings.EqualFold(q.Name, "www.example.com.") && q.Qtype == dns.TypeA:
			m := new(dns.Msg)
			m.SetReply(r)
			m.Ns = append(m.Ns, &dns.NS{
				Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 60},
				Ns:  "ns2.example.com.",
			})
			// Deliberately no Extra glue: this is what forces the suspend.
			_ = w.WriteMsg(m)

		case strings.EqualFold(q.Name, "ns2.example.com.") && q.Qtype == dns.TypeA:
			final := new(dns.Msg)
			final.SetQuestion("www.example.com.", dns.TypeA)
			final.Response = true
			final.Answer = append(final.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: "www.example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP("203.0.113.42"),
			})
			cache.set(final)

			m := new(dns.Msg)
			m.SetReply(r)
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: "ns2.example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP("198.51.100.9"),
			})
			_ = w.WriteMsg(m)

		default:
			m := new(dns.Msg)
			m.SetRcode(r, dns.RcodeServerFailure)
			_ = w.WriteMsg(m)
		}
	})

	ir, err := resolver.NewIterativeResolver(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := ir.Resolve(ctx, dns.Question{Name: "www.example.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET},
		resolver.WithCache(cache),
		resolver.WithServers([]resolver.NameServer{{Host: "ns1.test.", Endpoint: endpoint}}),
	)
	require.NoError(t, err)
	require.Len(t, resp.Msg.Answer, 1)
	require.Equal(t, "203.0.113.42", resp.Msg.Answer[0].(*dns.A).A.String())
	require.Equal(t, "cache", resp.Server.Host)
}
