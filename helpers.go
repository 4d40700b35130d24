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
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strings"

	"github.com/miekg/dns"
	"github.com/noisysockets/netutil/addrselect"
	"golang.org/x/sync/errgroup"
)

// ResolveIP resolves name to its IP addresses, trying AAAA first when
// preferIPv6 is set and downgrading to A when the AAAA answer comes back
// empty. CNAME aliases in the answer chain are followed up to the
// resolver's hop budget.
func (ir *IterativeResolver) ResolveIP(ctx context.Context, name string, preferIPv6 bool, opts ...ResolveOption) ([]netip.Addr, error) {
	qtype := uint16(dns.TypeA)
	if preferIPv6 {
		qtype = dns.TypeAAAA
	}

	resp, err := ir.resolveFollowingCNAME(ctx, dns.Fqdn(name), qtype, opts...)
	if err != nil {
		return nil, err
	}

	addrs := addrsFromAnswer(resp.Answer, qtype)
	if len(addrs) == 0 && preferIPv6 {
		resp, err = ir.resolveFollowingCNAME(ctx, dns.Fqdn(name), dns.TypeA, opts...)
		if err != nil {
			return nil, err
		}
		addrs = addrsFromAnswer(resp.Answer, dns.TypeA)
	}

	if len(addrs) == 0 {
		return nil, &NameErrorError{Question: dns.Question{Name: dns.Fqdn(name), Qtype: qtype, Qclass: dns.ClassINET}}
	}

	if len(addrs) > 1 {
		dial := func(network, address string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, network, address)
		}
		addrselect.SortByRFC6724(dial, addrs)
	}

	return addrs, nil
}

// mxRecord is one resolved MX target, with its address populated either from
// additional-section glue or a nested ResolveIP call.
type mxRecord struct {
	Host       string
	Preference uint16
	Addrs      []netip.Addr
}

// ResolveMX resolves name's MX records, sorted by ascending preference. When
// resolveIP is set, each exchange host's address is filled in from glue in
// the additional section if present, falling back to a nested ResolveIP
// call. An exchange host that fails transiently keeps its place in the
// output with no addresses; one that resolves to NXDOMAIN is dropped.
func (ir *IterativeResolver) ResolveMX(ctx context.Context, name string, resolveIP bool, preferIPv6 bool, opts ...ResolveOption) ([]mxRecord, error) {
	resp, err := ir.resolveFollowingCNAME(ctx, dns.Fqdn(name), dns.TypeMX, opts...)
	if err != nil {
		return nil, err
	}

	var out []mxRecord
	for _, rr := range resp.Answer {
		mx, ok := rr.(*dns.MX)
		if !ok {
			continue
		}
		out = append(out, mxRecord{Host: dns.Fqdn(mx.Mx), Preference: mx.Preference})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Preference < out[j].Preference })

	if !resolveIP {
		return out, nil
	}

	// Exchange hosts without glue each need their own nested Resolve call;
	// those are independent of one another, so resolve them concurrently
	// rather than serializing on round-trip latency per MX record.
	type lookupResult struct {
		addrs   []netip.Addr
		nameErr bool
	}
	results := make([]lookupResult, len(out))

	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range out {
		if addrs, ok := glueAddrsFromExtra(resp.Extra, rec.Host, preferIPv6); ok {
			results[i] = lookupResult{addrs: addrs}
			continue
		}

		i, rec := i, rec
		g.Go(func() error {
			addrs, err := ir.ResolveIP(gctx, rec.Host, preferIPv6, opts...)
			if err != nil {
				var nameErr *NameErrorError
				if errors.As(err, &nameErr) {
					results[i] = lookupResult{nameErr: true}
					return nil
				}
				// Transient failure: keep the MX entry with no addresses
				// rather than silently drop a real record.
				return nil
			}
			results[i] = lookupResult{addrs: addrs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := out[:0]
	for i, rec := range out {
		if results[i].nameErr {
			continue // drop: the exchange host genuinely doesn't exist
		}
		rec.Addrs = results[i].addrs
		kept = append(kept, rec)
	}

	return kept, nil
}

// ResolvePTR resolves the reverse-DNS name for addr.
func (ir *IterativeResolver) ResolvePTR(ctx context.Context, addr netip.Addr, opts ...ResolveOption) ([]string, error) {
	name, err := reverseName(addr)
	if err != nil {
		return nil, err
	}

	resp, err := ir.resolveFollowingCNAME(ctx, name, dns.TypePTR, opts...)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, rr := range resp.Answer {
		ptr, ok := rr.(*dns.PTR)
		if !ok {
			continue
		}
		out = append(out, dns.Fqdn(ptr.Ptr))
	}

	if len(out) == 0 {
		return nil, &NameErrorError{Question: dns.Question{Name: name, Qtype: dns.TypePTR, Qclass: dns.ClassINET}}
	}

	return out, nil
}

// resolveFollowingCNAME calls Resolve and, while the answer is a CNAME chain
// rather than an rtype record, follows the chain up to the resolver's hop
// budget before giving up.
func (ir *IterativeResolver) resolveFollowingCNAME(ctx context.Context, name string, rtype uint16, opts ...ResolveOption) (*dns.Msg, error) {
	cfg := newConfigFrom(ir.cfg, opts)
	budget := cfg.HopBudget
	if budget <= 0 {
		budget = defaultHopBudget
	}

	current := name

	for i := 0; i < budget; i++ {
		resp, err := ir.Resolve(ctx, dns.Question{Name: current, Qtype: rtype, Qclass: dns.ClassINET}, opts...)
		if err != nil {
			return nil, err
		}

		if hasRRType(resp.Msg.Answer, rtype) {
			return resp.Msg, nil
		}

		next, ok := cnameTarget(resp.Msg.Answer, current)
		if !ok {
			return resp.Msg, nil
		}
		current = next
	}

	return nil, fmt.Errorf("resolver: CNAME chain for %s exceeded hop budget", name)
}

func hasRRType(rrs []dns.RR, rtype uint16) bool {
	for _, rr := range rrs {
		if rr.Header().Rrtype == rtype {
			return true
		}
	}
	return false
}

func cnameTarget(rrs []dns.RR, owner string) (string, bool) {
	for _, rr := range rrs {
		cname, ok := rr.(*dns.CNAME)
		if !ok {
			continue
		}
		if strings.EqualFold(cname.Header().Name, owner) {
			return dns.Fqdn(cname.Target), true
		}
	}
	return "", false
}

func addrsFromAnswer(rrs []dns.RR, qtype uint16) []netip.Addr {
	var out []netip.Addr
	for _, rr := range rrs {
		switch rr := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				if addr, ok := netip.AddrFromSlice(rr.A.To4()); ok {
					out = append(out, addr)
				}
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				if addr, ok := netip.AddrFromSlice(rr.AAAA.To16()); ok {
					out = append(out, addr)
				}
			}
		}
	}
	return out
}

func glueAddrsFromExtra(extra []dns.RR, name string, preferIPv6 bool) ([]netip.Addr, bool) {
	var v4, v6 []netip.Addr
	for _, rr := range extra {
		if !strings.EqualFold(rr.Header().Name, name) {
			continue
		}
		switch rr := rr.(type) {
		case *dns.A:
			if addr, ok := netip.AddrFromSlice(rr.A.To4()); ok {
				v4 = append(v4, addr)
			}
		case *dns.AAAA:
			if addr, ok := netip.AddrFromSlice(rr.AAAA.To16()); ok {
				v6 = append(v6, addr)
			}
		}
	}
	if preferIPv6 && len(v6) > 0 {
		return v6, true
	}
	if len(v4) > 0 {
		return v4, true
	}
	if len(v6) > 0 {
		return v6, true
	}
	return nil, false
}

// reverseName builds the in-addr.arpa/ip6.arpa question name for addr.
func reverseName(addr netip.Addr) (string, error) {
	if addr.Is4() || addr.Is4In6() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa.", b[3], b[2], b[1], b[0]), nil
	}
	if addr.Is6() {
		b := addr.As16()
		var sb strings.Builder
		for i := len(b) - 1; i >= 0; i-- {
			sb.WriteString(fmt.Sprintf("%x.%x.", b[i]&0x0f, b[i]>>4))
		}
		sb.WriteString("ip6.arpa.")
		return sb.String(), nil
	}
	return "", fmt.Errorf("resolver: invalid address for PTR lookup")
}
