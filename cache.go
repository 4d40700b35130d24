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
	"sync"

	"github.com/miekg/dns"
)

// Cache is the external contract an IterativeResolver consults before doing
// any network I/O, and feeds every response it receives back into. A Cache
// implementation owns all policy on TTL expiry, eviction, and negative
// caching; the resolver only ever asks it the two questions below.
//
// Implementations must be safe for concurrent use: a resolver may be shared
// across goroutines, and so may its cache.
type Cache interface {
	// Query answers request from cache, or returns (nil, nil) on a cache
	// miss. A non-nil response is classified exactly as a wire response
	// would be: NoError with an answer section is a positive hit, NoError
	// with an SOA in authority and no answers is a cached negative
	// (empty) answer, NoError with NS (and possibly glue) in authority is
	// a cached delegation, and NameError is a cached NXDOMAIN.
	Query(request *dns.Msg) (*dns.Msg, error)

	// CacheResponse offers response to the cache for storage. It must be
	// idempotent and best-effort: a cache that chooses not to store a
	// given response (e.g. because it lacks any positive TTL) returns nil,
	// not an error.
	CacheResponse(response *dns.Msg) error
}

// responseClass describes how the iterative resolver should treat a
// response it has just received from a Cache.Query hit.
type responseClass int

const (
	classOther responseClass = iota
	classAnswer
	classNegative
	classDelegation
	classNameError
)

// classify inspects resp and reports which of the resolver's branch points
// it satisfies. The iterative resolver uses it for cache hits; wire
// responses are branched on by Resolve's own switch.
func classify(resp *dns.Msg) responseClass {
	if resp.Rcode == dns.RcodeNameError {
		return classNameError
	}
	if resp.Rcode != dns.RcodeSuccess {
		return classOther
	}
	if len(resp.Answer) > 0 {
		return classAnswer
	}
	if hasSOA(resp.Ns) {
		return classNegative
	}
	if hasNS(resp.Ns) {
		return classDelegation
	}
	return classOther
}

func hasSOA(rrs []dns.RR) bool {
	for _, rr := range rrs {
		if rr.Header().Rrtype == dns.TypeSOA {
			return true
		}
	}
	return false
}

func hasNS(rrs []dns.RR) bool {
	for _, rr := range rrs {
		if rr.Header().Rrtype == dns.TypeNS {
			return true
		}
	}
	return false
}

// memCache is a bare, process-local Cache keyed by question name and type,
// with no eviction or TTL honoring of its own. It exists solely to let a
// single nested resolution (e.g. ResolveEndpoint chasing a name server's own
// address) reuse answers across the hops of that one resolution, without
// reaching for a shared, long-lived cache.
type memCache struct {
	mu      sync.Mutex
	entries map[dns.Question]*dns.Msg
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[dns.Question]*dns.Msg)}
}

func (c *memCache) Query(request *dns.Msg) (*dns.Msg, error) {
	if len(request.Question) != 1 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[request.Question[0]], nil
}

func (c *memCache) CacheResponse(response *dns.Msg) error {
	if len(response.Question) != 1 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[response.Question[0]] = response
	return nil
}
