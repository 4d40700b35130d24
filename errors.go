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
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

// ErrNoSuchHost indicates a name could not be resolved to an address.
var ErrNoSuchHost = errors.New("no such host")

// NoResponseError is returned when every candidate name server was tried and
// none produced a usable reply. It carries the last transport failure
// observed, per the "last error wins" policy used throughout the resolver.
type NoResponseError struct {
	// Question is the question that could not be answered.
	Question dns.Question
	// Cause is the last underlying transport error observed, if any.
	Cause error
}

func (e *NoResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no response for %s %s: %v",
			dns.TypeToString[e.Question.Qtype], e.Question.Name, e.Cause)
	}
	return fmt.Sprintf("no response for %s %s", dns.TypeToString[e.Question.Qtype], e.Question.Name)
}

func (e *NoResponseError) Unwrap() error { return e.Cause }

// NameErrorError is returned by the helper resolutions when an authoritative
// server responds NXDOMAIN for a name the caller explicitly asked about.
// The low-level Resolve entry point returns it too, alongside a Response
// that carries the raw NXDOMAIN datagram.
type NameErrorError struct {
	Question dns.Question
}

func (e *NameErrorError) Error() string {
	return fmt.Sprintf("%s: %s", dns.RcodeToString[dns.RcodeNameError], e.Question.Name)
}

// TransportError wraps a failure from a specific transport/server pair. It is
// never returned to callers directly, but is chained into NoResponseError so
// that the final failure carries enough context to be actionable.
type TransportError struct {
	Protocol Protocol
	Server   string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport to %s: %v", e.Protocol, e.Server, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// isTemporary reports whether err is worth retrying against another server
// or over another transport, as opposed to a permanent answer such as
// NXDOMAIN that retrying cannot change.
func isTemporary(err error) bool {
	if err == nil {
		return false
	}
	var nameErr *NameErrorError
	return !errors.As(err, &nameErr)
}
