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
	"fmt"
	"io"
	"net/netip"
	"os"
	"sync"

	"github.com/kevinburke/hostsfile"
	"github.com/miekg/dns"
)

// HostsCache is a Cache implementation backed by the system (or a supplied)
// hosts file. It answers A/AAAA queries for any name it has an entry for and
// reports a miss (nil, nil) for everything else, so it composes naturally
// with another Cache or the network as a fallback. CacheResponse is a no-op:
// the hosts file is read-only from the resolver's point of view.
type HostsCache struct {
	mu         sync.RWMutex
	nameToAddr map[string][]netip.Addr
}

// NewHostsCache builds a HostsCache from r. If r is nil, the OS's default
// hosts file location is opened and read instead.
func NewHostsCache(r io.Reader) (*HostsCache, error) {
	if r == nil {
		f, err := os.Open(hostsfile.Location)
		if err != nil {
			return nil, fmt.Errorf("resolver: opening hosts file: %w", err)
		}
		defer f.Close()
		r = f
	}

	h, err := hostsfile.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("resolver: parsing hosts file: %w", err)
	}

	nameToAddr := make(map[string][]netip.Addr)
	for _, record := range h.Records() {
		addr, err := netip.ParseAddr(record.IpAddress.String())
		if err != nil {
			continue
		}
		for name := range record.Hostnames {
			fqdn := dns.Fqdn(name)
			nameToAddr[fqdn] = append(nameToAddr[fqdn], addr)
		}
	}

	return &HostsCache{nameToAddr: nameToAddr}, nil
}

// AddHost registers an ephemeral entry that did not come from the hosts
// file, overriding any existing entry for host.
func (c *HostsCache) AddHost(host string, addrs ...netip.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nameToAddr[dns.Fqdn(host)] = addrs
}

func (c *HostsCache) Query(request *dns.Msg) (*dns.Msg, error) {
	if len(request.Question) != 1 {
		return nil, nil
	}
	q := request.Question[0]
	if q.Qtype != dns.TypeA && q.Qtype != dns.TypeAAAA {
		return nil, nil
	}

	c.mu.RLock()
	addrs, ok := c.nameToAddr[q.Name]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	resp := new(dns.Msg)
	resp.SetReply(request)
	resp.Authoritative = true

	for _, addr := range addrs {
		switch {
		case q.Qtype == dns.TypeA && addr.Is4():
			resp.Answer = append(resp.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 0},
				A:   addr.AsSlice(),
			})
		case q.Qtype == dns.TypeAAAA && addr.Is6() && !addr.Is4In6():
			resp.Answer = append(resp.Answer, &dns.AAAA{
				Hdr:  dns.RR_Header{Name: q.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 0},
				AAAA: addr.AsSlice(),
			})
		}
	}

	// No addresses of the requested family: report an authoritative empty
	// answer via SOA rather than a raw cache miss, matching what a real
	// authoritative answer for a hosts-only name would look like.
	if len(resp.Answer) == 0 {
		resp.Ns = []dns.RR{&dns.SOA{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 0},
			Ns:  "localhost.", Mbox: "root.localhost.",
		}}
	}

	return resp, nil
}

func (c *HostsCache) CacheResponse(*dns.Msg) error {
	return nil
}
