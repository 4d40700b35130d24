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
	"time"

	"github.com/miekg/dns"

	"github.com/nightwave-systems/recurdns/internal/util"
)

const (
	// defaultHopBudget (HMAX) bounds how many referral/CNAME hops a single
	// Resolve call will chase before giving up and returning its best
	// response so far.
	defaultHopBudget = 16
	// defaultStackBudget (SMAX) bounds the depth of the suspend/resume
	// frame stack used while resolving a name server's own address mid
	// resolution.
	defaultStackBudget = 10
	// defaultRetriesPerServer (R) is the client resolver's retry
	// multiplier: it will attempt up to R * len(servers) exchanges before
	// giving up on a single-hop query.
	defaultRetriesPerServer = 2
	// defaultTimeout bounds a single transport exchange.
	defaultTimeout = 5 * time.Second
)

// Config holds the tunable knobs of an IterativeResolver. A zero Config is
// not valid on its own; use NewIterativeResolver, which fills in every zero
// field from DefaultConfig via util.ConfigWithDefaults.
type Config struct {
	// PreferIPv6 selects AAAA over A wherever the resolver must itself
	// resolve a name server's address, and prefers IPv6 glue and root
	// literals when both are available.
	PreferIPv6 bool
	// Protocol is the wire carrier used for every top-level exchange this
	// resolver issues.
	Protocol Protocol
	// RecursiveProtocol (RP) is the wire carrier used for the nested
	// lookups the resolver performs to resolve a name server's own
	// address, which defaults to plain UDP regardless of Protocol so that
	// a forwarder-only Protocol doesn't also block glue resolution.
	RecursiveProtocol Protocol
	// HopBudget is HMAX: the maximum number of referral/CNAME hops a
	// single top-level Resolve call will take.
	HopBudget int
	// StackBudget is SMAX: the maximum depth of the suspend/resume frame
	// stack.
	StackBudget int
	// RetriesPerServer is R, the client resolver's per-server retry
	// multiplier.
	RetriesPerServer int
	// Timeout bounds a single transport exchange attempt.
	Timeout time.Duration
	// Roots seeds the initial name server list. When nil, the IANA root
	// hints are used (selected by PreferIPv6).
	Roots []NameServer
	// Cache is consulted before any network I/O and fed every response
	// the resolver receives. May be nil.
	Cache Cache
	// Proxy, when set, is used to dial every name server instead of a
	// direct connection.
	Proxy ProxyDispatcher
}

// DefaultConfig returns the resolver's baseline configuration: IPv4 roots
// over UDP, with the hop, stack, and retry budgets from the design.
func DefaultConfig() Config {
	return Config{
		PreferIPv6:        false,
		Protocol:          ProtocolUDP,
		RecursiveProtocol: ProtocolUDP,
		HopBudget:         defaultHopBudget,
		StackBudget:       defaultStackBudget,
		RetriesPerServer:  defaultRetriesPerServer,
		Timeout:           defaultTimeout,
	}
}

// ResolveOption customizes a single Resolve call without mutating the
// resolver's own Config.
type ResolveOption func(*Config)

// WithCache overrides the cache used for a single Resolve call.
func WithCache(c Cache) ResolveOption {
	return func(cfg *Config) { cfg.Cache = c }
}

// WithProxy overrides the proxy dispatcher used for a single Resolve call.
func WithProxy(p ProxyDispatcher) ResolveOption {
	return func(cfg *Config) { cfg.Proxy = p }
}

// WithProtocol overrides the wire protocol used for a single Resolve call.
func WithProtocol(p Protocol) ResolveOption {
	return func(cfg *Config) { cfg.Protocol = p }
}

// WithRetries overrides the client resolver's per-server retry multiplier
// for a single Resolve call.
func WithRetries(r int) ResolveOption {
	return func(cfg *Config) { cfg.RetriesPerServer = r }
}

// WithServers overrides the starting name server list for a single Resolve
// call, bypassing the roots entirely: the list also seeds the nested
// lookups of name server addresses.
func WithServers(ns []NameServer) ResolveOption {
	return func(cfg *Config) { cfg.Roots = ns }
}

// WithRecursiveProtocol overrides the protocol used for the nested lookups
// the resolver performs to resolve a name server's own address.
func WithRecursiveProtocol(p Protocol) ResolveOption {
	return func(cfg *Config) { cfg.RecursiveProtocol = p }
}

// WithPreferIPv6 overrides whether AAAA/IPv6 is preferred over A/IPv4
// wherever the resolver must itself choose between address families.
func WithPreferIPv6(prefer bool) ResolveOption {
	return func(cfg *Config) { cfg.PreferIPv6 = prefer }
}

// WithHopBudget overrides HMAX, the maximum number of referral/CNAME hops a
// single Resolve call will take.
func WithHopBudget(hops int) ResolveOption {
	return func(cfg *Config) { cfg.HopBudget = hops }
}

// WithStackBudget overrides SMAX, the maximum depth of the suspend/resume
// frame stack.
func WithStackBudget(depth int) ResolveOption {
	return func(cfg *Config) { cfg.StackBudget = depth }
}

// WithTimeout overrides the per-exchange transport timeout for a single
// Resolve call.
func WithTimeout(d time.Duration) ResolveOption {
	return func(cfg *Config) { cfg.Timeout = d }
}

func newConfigFrom(base Config, opts []ResolveOption) Config {
	cfg := base
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func mergedConfig(conf *Config) (*Config, error) {
	defaults := DefaultConfig()
	return util.ConfigWithDefaults(conf, &defaults)
}

// Response is the result of a Resolve call: the final wire message, the
// name server that produced it, and a count of the wire responses taken to
// reach it.
type Response struct {
	Msg *dns.Msg
	// Server is the NameServer that returned Msg: the one that was actually
	// queried for the final answer, or the one at the top of the stack when
	// a suspended resolution resumed into it.
	Server NameServer
	// Hops counts the wire responses the call accepted, including those of
	// nested name server lookups; a direct answer from the first server
	// gives 1. CNAME chains are not followed by Resolve.
	Hops int
}
