// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package resolver

// Protocol identifies the wire carrier used for a DNS exchange. The five
// variants form a closed set; there is no dynamic dispatch through
// inheritance, just a switch over this string enum wherever a transport is
// selected.
type Protocol string

const (
	// ProtocolUDP is DNS over UDP, RFC 1035. The default for both stub and
	// iterative queries; truncated replies trigger a single TCP retry.
	ProtocolUDP Protocol = "udp"
	// ProtocolTCP is DNS over TCP, RFC 1035, 2-byte length-prefixed framing.
	ProtocolTCP Protocol = "tcp"
	// ProtocolTLS is DNS over TLS, RFC 7858: a TCP transport wrapped in a TLS
	// handshake, conventionally on port 853.
	ProtocolTLS Protocol = "tls"
	// ProtocolHTTPSWire is DNS over HTTPS using the wire format, RFC 8484: a
	// POST of application/dns-message to a DoH URL.
	ProtocolHTTPSWire Protocol = "https"
	// ProtocolHTTPSJSON is DNS over HTTPS using the Google/Cloudflare JSON
	// schema: a GET with name/type query parameters.
	ProtocolHTTPSJSON Protocol = "https-json"
)

// IsForwarderOnly reports whether the protocol can only be used to query a
// single, trusted forwarder: TLS and the two HTTPS variants don't carry
// referrals the way a classic authoritative exchange does, so the iterative
// resolver treats a referral received over one of these as a sign the
// configured server is itself a forwarder, and stops iterating.
func (p Protocol) IsForwarderOnly() bool {
	switch p {
	case ProtocolTLS, ProtocolHTTPSWire, ProtocolHTTPSJSON:
		return true
	default:
		return false
	}
}

// DefaultPort returns the conventional port for the protocol: 53 for UDP and
// TCP, 853 for TLS, 443 for the HTTPS variants.
func (p Protocol) DefaultPort() uint16 {
	switch p {
	case ProtocolTLS:
		return 853
	case ProtocolHTTPSWire, ProtocolHTTPSJSON:
		return 443
	default:
		return 53
	}
}
