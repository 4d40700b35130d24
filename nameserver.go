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
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/nightwave-systems/recurdns/internal/util"
)

// NameServer describes a single name server: a host label or literal
// address, an optional resolved endpoint, and an optional DoH URL. At most
// one of Endpoint and DoHURL is meaningful for a direct query; if neither is
// set, Host must first be resolved via ResolveEndpoint.
//
// NameServer values are cheap to copy; the iterative resolver treats them as
// plain values and only ever mutates its own working slice.
type NameServer struct {
	// Host is the server's domain label, or its IP address rendered as
	// text, as it appeared in the referral or configuration that produced
	// this value.
	Host string
	// Endpoint is the resolved IP and port to dial directly, if known.
	Endpoint netip.AddrPort
	// DoHURL is set when this name server should be queried over DNS over
	// HTTPS, instead of a raw socket endpoint.
	DoHURL *url.URL
}

// HasEndpoint reports whether the server can be dialed directly, without
// first resolving its host.
func (ns NameServer) HasEndpoint() bool {
	return ns.Endpoint.IsValid() || ns.DoHURL != nil
}

func (ns NameServer) String() string {
	switch {
	case ns.DoHURL != nil:
		return ns.DoHURL.String()
	case ns.Endpoint.IsValid():
		return ns.Endpoint.String()
	default:
		return ns.Host
	}
}

// ParseNameServer parses one of the accepted textual forms of a name
// server: host, host:port, ip, ip:port, [ipv6]:port, or an
// https://.../dns-query DoH URL. protocol supplies the default port when
// none is given in the text. A port given with a host name is not kept:
// the result carries only Host, and ResolveEndpoint later pairs the
// resolved address with the protocol's default port.
func ParseNameServer(s string, protocol Protocol) (NameServer, error) {
	if strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return NameServer{}, fmt.Errorf("invalid DoH URL %q: %w", s, err)
		}
		return NameServer{Host: u.Hostname(), DoHURL: u}, nil
	}

	host, port, err := splitHostPort(s)
	if err != nil {
		return NameServer{}, err
	}
	if port == 0 {
		port = protocol.DefaultPort()
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return NameServer{
			Host:     host,
			Endpoint: netip.AddrPortFrom(addr, port),
		}, nil
	}

	// A bare domain label; the endpoint is resolved later via
	// ResolveEndpoint.
	return NameServer{Host: dns.Fqdn(host)}, nil
}

// splitHostPort is a more permissive net.SplitHostPort that also accepts a
// bare host or IP with no port at all, returning port 0 in that case.
func splitHostPort(s string) (host string, port uint16, err error) {
	if strings.HasPrefix(s, "[") {
		// [ipv6] or [ipv6]:port.
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", 0, fmt.Errorf("invalid name server %q: missing ']'", s)
		}
		host = s[1:end]
		rest := s[end+1:]
		if rest == "" {
			return host, 0, nil
		}
		if !strings.HasPrefix(rest, ":") {
			return "", 0, fmt.Errorf("invalid name server %q", s)
		}
		p, err := strconv.ParseUint(rest[1:], 10, 16)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port in %q: %w", s, err)
		}
		return host, uint16(p), nil
	}

	// A bare IPv6 literal with no brackets and no port.
	if strings.Count(s, ":") > 1 {
		return s, 0, nil
	}

	if idx := strings.LastIndexByte(s, ':'); idx >= 0 {
		p, err := strconv.ParseUint(s[idx+1:], 10, 16)
		if err != nil {
			// Not actually a port; treat the whole thing as a host (e.g.
			// a bare IPv6 address we failed to special-case above).
			return s, 0, nil
		}
		return s[:idx], uint16(p), nil
	}

	return s, 0, nil
}

// ShuffleNameServers permutes ns in place using the process-wide CSPRNG. The
// caller's backing array is never touched directly by the iterative
// resolver: it always copies before shuffling, per the shuffle-safety law.
func ShuffleNameServers(ns []NameServer) {
	util.Shuffle(ns)
}

// endpointResolver is the minimal surface ResolveEndpoint needs from an
// IterativeResolver: the ability to answer a single question starting from
// the roots. It's expressed as an interface so NameServer doesn't have to
// import the full resolver configuration surface.
type endpointResolver interface {
	Resolve(ctx context.Context, q dns.Question, opts ...ResolveOption) (*Response, error)
}

// ResolveEndpoint populates ns.Endpoint if it isn't already set, by asking
// ir to resolve ns.Host's address starting from the root servers. If
// preferIPv6 is set, AAAA is tried first; an empty AAAA answer falls back to
// A transparently. retries and protocol are forwarded to the nested
// resolution as its client-resolver retry budget and wire protocol.
func (ns *NameServer) ResolveEndpoint(
	ctx context.Context,
	ir endpointResolver,
	cache Cache,
	proxy ProxyDispatcher,
	preferIPv6 bool,
	protocol Protocol,
	retries int,
) error {
	if ns.HasEndpoint() {
		return nil
	}

	qtype := dns.TypeA
	if preferIPv6 {
		qtype = dns.TypeAAAA
	}

	q := dns.Question{Name: dns.Fqdn(ns.Host), Qtype: qtype, Qclass: dns.ClassINET}

	resp, err := ir.Resolve(ctx, q,
		WithCache(cache),
		WithProxy(proxy),
		WithProtocol(protocol),
		WithRetries(retries),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve name server %q: %w", ns.Host, err)
	}

	addr, ok := firstAddr(resp.Msg.Answer, qtype)
	if !ok && preferIPv6 {
		// A top-level Resolve returns an empty AAAA answer (SOA or not)
		// as is; its AAAA->A downgrade applies only inside a suspended
		// frame, so the A lookup is made here.
		resp, err = ir.Resolve(ctx, dns.Question{Name: q.Name, Qtype: dns.TypeA, Qclass: dns.ClassINET},
			WithCache(cache), WithProxy(proxy), WithProtocol(protocol), WithRetries(retries))
		if err != nil {
			return fmt.Errorf("failed to resolve name server %q: %w", ns.Host, err)
		}
		addr, ok = firstAddr(resp.Msg.Answer, dns.TypeA)
	}

	if !ok {
		return &NoResponseError{Question: q, Cause: ErrNoSuchHost}
	}

	ns.Endpoint = netip.AddrPortFrom(addr, protocol.DefaultPort())
	return nil
}

func firstAddr(answers []dns.RR, qtype uint16) (netip.Addr, bool) {
	for _, rr := range answers {
		switch rr := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				if addr, ok := netip.AddrFromSlice(rr.A.To4()); ok {
					return addr, true
				}
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				if addr, ok := netip.AddrFromSlice(rr.AAAA.To16()); ok {
					return addr, true
				}
			}
		}
	}
	return netip.Addr{}, false
}

// ExtractReferral walks a response's authority section for NS records and
// pairs each one with any glue (A/AAAA) in the additional section whose
// owner name matches the NS target. If allowOnlyResolved is set, NS records
// without matching glue are dropped rather than returned host-only. Output
// preserves DNS referral order; callers that want load distribution must
// shuffle it themselves.
func ExtractReferral(resp *dns.Msg, preferIPv6 bool, allowOnlyResolved bool) []NameServer {
	var out []NameServer

	for _, rr := range resp.Ns {
		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}

		target := dns.Fqdn(ns.Ns)
		entry := NameServer{Host: target}

		if addr, ok := glueFor(resp.Extra, target, preferIPv6); ok {
			entry.Endpoint = netip.AddrPortFrom(addr, 53)
		} else if allowOnlyResolved {
			continue
		}

		out = append(out, entry)
	}

	return out
}

// glueFor looks for an A/AAAA record in extra whose owner name matches name
// case-insensitively. When preferIPv6 is set AAAA glue is preferred, falling
// back to A if no AAAA glue is present (and vice versa).
func glueFor(extra []dns.RR, name string, preferIPv6 bool) (netip.Addr, bool) {
	var v4, v6 netip.Addr
	var haveV4, haveV6 bool

	for _, rr := range extra {
		if !strings.EqualFold(rr.Header().Name, name) {
			continue
		}
		switch rr := rr.(type) {
		case *dns.A:
			if addr, ok := netip.AddrFromSlice(rr.A.To4()); ok {
				v4, haveV4 = addr, true
			}
		case *dns.AAAA:
			if addr, ok := netip.AddrFromSlice(rr.AAAA.To16()); ok {
				v6, haveV6 = addr, true
			}
		}
	}

	if preferIPv6 && haveV6 {
		return v6, true
	}
	if haveV4 {
		return v4, true
	}
	if haveV6 {
		return v6, true
	}
	return netip.Addr{}, false
}
