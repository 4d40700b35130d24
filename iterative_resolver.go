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
	"strings"

	"github.com/miekg/dns"
)

// IterativeResolver is the core state machine: it drives resolution from
// the root servers (or a caller-supplied name server list) to an
// authoritative answer, chasing referrals, resolving unknown name server
// addresses through a bounded suspend/resume stack, and consulting a cache
// at every branching point.
//
// An IterativeResolver holds only immutable configuration; all mutable
// per-call state lives on the stack of a single Resolve call, so one
// instance is safe to share across concurrent callers.
type IterativeResolver struct {
	cfg Config
}

// NewIterativeResolver builds a resolver from conf, filling any zero field
// in from DefaultConfig.
func NewIterativeResolver(conf *Config) (*IterativeResolver, error) {
	merged, err := mergedConfig(conf)
	if err != nil {
		return nil, fmt.Errorf("resolver: building config: %w", err)
	}
	return &IterativeResolver{cfg: *merged}, nil
}

var _ endpointResolver = (*IterativeResolver)(nil)

// cacheNameServer is the NameServer attributed to a Response answered
// straight out of the cache, where no wire exchange with a real server took
// place.
var cacheNameServer = NameServer{Host: "cache"}

// Resolve answers q, starting from the resolver's configured roots (or
// whatever WithServers supplies) and iterating referrals and suspended
// name-server lookups until it reaches an authoritative answer, a negative
// answer, a name error, or exhausts its hop/stack budget.
func (ir *IterativeResolver) Resolve(ctx context.Context, q dns.Question, opts ...ResolveOption) (*Response, error) {
	cfg := newConfigFrom(ir.cfg, opts)

	stack := newFrameStack(cfg.StackBudget)

	question := q
	servers := append([]NameServer(nil), cfg.Roots...)
	protocol := cfg.Protocol

	stackNSIndex := 0
	hop := 1
	totalHops := 0

	var lastResp *dns.Msg
	var lastNS NameServer
	var lastErr error

stackLoop:
	for {
		// 1. Cache check.
		if cfg.Cache != nil {
			probe := new(dns.Msg)
			probe.SetQuestion(question.Name, question.Qtype)
			probe.Question[0].Qclass = question.Qclass

			if cached, err := cfg.Cache.Query(probe); err == nil && cached != nil {
				switch classify(cached) {
				case classAnswer:
					if stack.depth() == 0 {
						return &Response{Msg: cached, Server: cacheNameServer, Hops: totalHops}, nil
					}
					frame, _ := stack.pop()
					installGlue(&frame.servers[frame.index], cached)
					question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
					stackNSIndex = frame.index
					continue stackLoop

				case classNegative:
					if stack.depth() == 0 {
						return &Response{Msg: cached, Server: cacheNameServer, Hops: totalHops}, nil
					}
					if question.Qtype == dns.TypeAAAA {
						question.Qtype = dns.TypeA
						continue stackLoop
					}
					frame, _ := stack.pop()
					question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
					stackNSIndex = frame.index + 1
					continue stackLoop

				case classDelegation:
					if len(servers) == 0 {
						servers = ExtractReferral(cached, cfg.PreferIPv6, true)
						ShuffleNameServers(servers)
					}
					// Fall through: the resolver loop below picks up from
					// here with servers now populated from the cached
					// delegation.

				case classNameError:
					if stack.depth() == 0 {
						return &Response{Msg: cached, Server: cacheNameServer, Hops: totalHops}, &NameErrorError{Question: question}
					}
					frame, _ := stack.pop()
					question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
					stackNSIndex = frame.index + 1
					continue stackLoop
				}
			}
		}

		// 2. Roots default. A suspended resolution (e.g. looking up a name
		// server's own address) clears servers and lands back here: it
		// must restart from the same roots the caller configured, not
		// silently fall back to the public Internet roots.
		if len(servers) == 0 {
			if len(cfg.Roots) > 0 {
				servers = append([]NameServer(nil), cfg.Roots...)
			} else {
				servers = Roots(cfg.PreferIPv6)
			}
			ShuffleNameServers(servers)
		}

		// 3. Resolver loop.
		for ; hop <= cfg.HopBudget; hop++ {
			startIdx := stackNSIndex
			stackNSIndex = 0
			originalLen := len(servers)
			gotReferral := false

		nsLoop:
			for i := startIdx; i < originalLen; i++ {
				ns := servers[i]
				isLast := (i + 1) == originalLen

				if !ns.HasEndpoint() && cfg.Proxy == nil {
					frame := resolverFrame{question: question, servers: servers, index: i, protocol: protocol, hopsUsed: hop}
					if err := stack.push(frame); err != nil {
						return terminate(lastResp, lastNS, totalHops, lastErr)
					}

					qtype := uint16(dns.TypeA)
					if cfg.PreferIPv6 {
						qtype = dns.TypeAAAA
					}
					question = dns.Question{Name: dns.Fqdn(ns.Host), Qtype: qtype, Qclass: dns.ClassINET}
					servers = nil
					protocol = cfg.RecursiveProtocol
					continue stackLoop
				}

				cr, err := NewClientResolver([]NameServer{ns}, protocol, cfg.Proxy, cfg.RetriesPerServer, cfg.Timeout)
				if err != nil {
					lastErr = err
					continue
				}

				resp, err := cr.Exchange(ctx, question)
				if err != nil {
					lastErr = err
					continue
				}

				if resp.Truncated && protocol != ProtocolUDP {
					if stack.depth() == 0 {
						return &Response{Msg: resp, Server: ns, Hops: totalHops}, nil
					}
					frame, _ := stack.pop()
					question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
					stackNSIndex = frame.index + 1
					continue stackLoop
				}

				totalHops++
				lastResp = resp
				lastNS = ns
				if cfg.Cache != nil {
					_ = cfg.Cache.CacheResponse(resp)
				}

				switch {
				case resp.Rcode == dns.RcodeNameError:
					if stack.depth() == 0 {
						return &Response{Msg: resp, Server: ns, Hops: totalHops}, &NameErrorError{Question: question}
					}
					frame, _ := stack.pop()
					question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
					stackNSIndex = frame.index + 1
					continue stackLoop

				case resp.Rcode != dns.RcodeSuccess:
					if isLast {
						if stack.depth() == 0 {
							return &Response{Msg: resp, Server: ns, Hops: totalHops}, nil
						}
						frame, _ := stack.pop()
						question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
						stackNSIndex = frame.index + 1
						continue stackLoop
					}
					continue

				case len(resp.Answer) > 0:
					if !answerMatchesQuestion(resp, question) {
						lastErr = fmt.Errorf("resolver: server %s returned mismatched answer for %s", ns, question.Name)
						continue
					}
					if stack.depth() == 0 {
						return &Response{Msg: resp, Server: ns, Hops: totalHops}, nil
					}
					frame, _ := stack.pop()
					installGlue(&frame.servers[frame.index], resp)
					question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
					stackNSIndex = frame.index
					continue stackLoop

				case len(resp.Ns) > 0 && resp.Ns[0].Header().Rrtype == dns.TypeSOA:
					if stack.depth() == 0 {
						return &Response{Msg: resp, Server: ns, Hops: totalHops}, nil
					}
					if question.Qtype == dns.TypeAAAA {
						question.Qtype = dns.TypeA
						continue stackLoop
					}
					frame, _ := stack.pop()
					question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
					stackNSIndex = frame.index + 1
					continue stackLoop

				case len(resp.Ns) > 0:
					if selfReferentialEmptyResponse(resp, question, ns) {
						if stack.depth() == 0 {
							return &Response{Msg: resp, Server: ns, Hops: totalHops}, nil
						}
						frame, _ := stack.pop()
						question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
						stackNSIndex = frame.index + 1
						continue stackLoop
					}

					if hop == cfg.HopBudget {
						if stack.depth() == 0 {
							return &Response{Msg: resp, Server: ns, Hops: totalHops}, nil
						}
						frame, _ := stack.pop()
						question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
						stackNSIndex = frame.index + 1
						continue stackLoop
					}

					referral := ExtractReferral(resp, cfg.PreferIPv6, false)
					if len(referral) == 0 {
						if isLast {
							if stack.depth() == 0 {
								return &Response{Msg: resp, Server: ns, Hops: totalHops}, nil
							}
							frame, _ := stack.pop()
							question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
							stackNSIndex = frame.index + 1
							continue stackLoop
						}
						continue
					}

					if protocol.IsForwarderOnly() {
						if stack.depth() == 0 {
							return &Response{Msg: resp, Server: ns, Hops: totalHops}, nil
						}
						frame, _ := stack.pop()
						question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
						stackNSIndex = frame.index + 1
						continue stackLoop
					}

					ShuffleNameServers(referral)
					servers = referral
					gotReferral = true
					break nsLoop

				default: // NoError, no answers, no authority.
					if isLast {
						if stack.depth() == 0 {
							return &Response{Msg: resp, Server: ns, Hops: totalHops}, nil
						}
						frame, _ := stack.pop()
						question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
						stackNSIndex = frame.index + 1
						continue stackLoop
					}
					continue
				}
			}

			if gotReferral {
				continue
			}

			// Every server in this hop failed.
			if stack.depth() == 0 {
				return terminate(lastResp, lastNS, totalHops, lastErr)
			}
			frame, _ := stack.pop()
			question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
			stackNSIndex = frame.index + 1
			continue stackLoop
		}

		// Hop budget exhausted for this frame.
		if stack.depth() == 0 {
			return terminate(lastResp, lastNS, totalHops, lastErr)
		}
		frame, _ := stack.pop()
		question, servers, protocol, hop = frame.question, frame.servers, frame.protocol, frame.hopsUsed
		stackNSIndex = frame.index + 1
		continue stackLoop
	}
}

// terminate builds the final Response when the resolver runs out of servers
// or hop budget without reaching a cleaner result: lastResp and lastNS are
// the most recent wire response and the server that sent it, if any.
func terminate(lastResp *dns.Msg, lastNS NameServer, hops int, lastErr error) (*Response, error) {
	if lastResp != nil {
		return &Response{Msg: lastResp, Server: lastNS, Hops: hops}, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &NoResponseError{Cause: ErrNoSuchHost}
}

// answerMatchesQuestion reports whether the first record in resp's answer
// section is owned by question.Name, guarding against a misconfigured
// server answering for the wrong name.
func answerMatchesQuestion(resp *dns.Msg, question dns.Question) bool {
	if len(resp.Answer) == 0 {
		return false
	}
	return strings.EqualFold(resp.Answer[0].Header().Name, question.Name)
}

// selfReferentialEmptyResponse detects the "empty response from an
// authoritative server" signal: the authority section contains an NS record
// whose owner is the question name itself and whose target is the server
// that just answered, i.e. the server is telling us it is authoritative and
// simply has nothing further to say.
func selfReferentialEmptyResponse(resp *dns.Msg, question dns.Question, ns NameServer) bool {
	for _, rr := range resp.Ns {
		nsRR, ok := rr.(*dns.NS)
		if !ok {
			continue
		}
		if strings.EqualFold(nsRR.Header().Name, question.Name) && strings.EqualFold(nsRR.Ns, ns.Host) {
			return true
		}
	}
	return false
}

// installGlue writes the A/AAAA answer carried by resp into a suspended
// name server slot, so the suspended resolution can resume against it.
func installGlue(ns *NameServer, resp *dns.Msg) {
	for _, rr := range resp.Answer {
		switch rr := rr.(type) {
		case *dns.A:
			if addr, ok := netip.AddrFromSlice(rr.A.To4()); ok {
				ns.Endpoint = netip.AddrPortFrom(addr, 53)
				return
			}
		case *dns.AAAA:
			if addr, ok := netip.AddrFromSlice(rr.AAAA.To16()); ok {
				ns.Endpoint = netip.AddrPortFrom(addr, 53)
				return
			}
		}
	}
}
