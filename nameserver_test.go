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
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/nightwave-systems/recurdns"
)

func mustParseIP4(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		panic("invalid test IP: " + s)
	}
	return ip.To4()
}

func TestParseNameServerForms(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantHost string
		wantPort uint16
	}{
		{"bare ipv4", "192.0.2.1", "192.0.2.1", 53},
		{"ipv4 with port", "192.0.2.1:5353", "192.0.2.1", 5353},
		{"bracketed ipv6", "[2001:db8::1]:53", "2001:db8::1", 53},
		{"bare ipv6", "2001:db8::1", "2001:db8::1", 53},
		{"bare host", "ns1.example.com", "ns1.example.com.", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns, err := resolver.ParseNameServer(tt.in, resolver.ProtocolUDP)
			require.NoError(t, err)

			if tt.wantPort != 0 {
				require.True(t, ns.Endpoint.IsValid())
				require.Equal(t, tt.wantHost, ns.Endpoint.Addr().String())
				require.Equal(t, tt.wantPort, ns.Endpoint.Port())
			} else {
				require.False(t, ns.HasEndpoint())
				require.Equal(t, tt.wantHost, ns.Host)
			}
		})
	}
}

func TestParseNameServerDoH(t *testing.T) {
	ns, err := resolver.ParseNameServer("https://dns.example.com/dns-query", resolver.ProtocolHTTPSWire)
	require.NoError(t, err)
	require.NotNil(t, ns.DoHURL)
	require.Equal(t, "dns.example.com", ns.Host)
	require.True(t, ns.HasEndpoint())
}

func TestExtractReferralPairsGlue(t *testing.T) {
	resp := new(dns.Msg)
	resp.Ns = []dns.RR{
		&dns.NS{Hdr: dns.RR_Header{Name: "zone.test.", Rrtype: dns.TypeNS}, Ns: "ns1.zone.test."},
		&dns.NS{Hdr: dns.RR_Header{Name: "zone.test.", Rrtype: dns.TypeNS}, Ns: "ns2.zone.test."},
	}
	resp.Extra = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "ns1.zone.test.", Rrtype: dns.TypeA}, A: mustParseIP4("192.0.2.53")},
	}

	referral := resolver.ExtractReferral(resp, false, false)
	require.Len(t, referral, 2)

	var withGlue, withoutGlue int
	for _, ns := range referral {
		if ns.HasEndpoint() {
			withGlue++
		} else {
			withoutGlue++
		}
	}
	require.Equal(t, 1, withGlue)
	require.Equal(t, 1, withoutGlue)
}

func TestExtractReferralDropsUnresolvedWhenRequested(t *testing.T) {
	resp := new(dns.Msg)
	resp.Ns = []dns.RR{
		&dns.NS{Hdr: dns.RR_Header{Name: "zone.test.", Rrtype: dns.TypeNS}, Ns: "ns1.zone.test."},
		&dns.NS{Hdr: dns.RR_Header{Name: "zone.test.", Rrtype: dns.TypeNS}, Ns: "ns2.zone.test."},
	}
	resp.Extra = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "ns1.zone.test.", Rrtype: dns.TypeA}, A: mustParseIP4("192.0.2.53")},
	}

	referral := resolver.ExtractReferral(resp, false, true)
	require.Len(t, referral, 1)
	require.True(t, referral[0].HasEndpoint())
}
