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

	"github.com/miekg/dns"
)

// resolverFrame captures everything the iterative resolver needs to suspend
// one in-flight question and resume it later, once a name server it needs an
// address for has itself been resolved. There is no goroutine or channel
// involved: suspension is just pushing one of these onto a bounded stack and
// resolving a different question in its place.
type resolverFrame struct {
	// question is the question being resolved when suspension occurred.
	question dns.Question
	// servers is the working name server list at the point of suspension.
	servers []NameServer
	// index is the position in servers that was about to be tried.
	index int
	// protocol is the wire protocol in effect for this frame.
	protocol Protocol
	// hopsUsed is the hop count already spent by this frame, so resuming
	// it continues to draw from the same HMAX budget rather than
	// resetting.
	hopsUsed int
}

// frameStack is a depth-bounded LIFO stack of suspended resolutions. Pushing
// past its configured limit returns an error instead of growing unbounded:
// a name server chain that needs its own name server that needs its own
// name server, SMAX deep, is treated as a failure rather than allowed to
// recurse forever.
type frameStack struct {
	limit  int
	frames []resolverFrame
}

func newFrameStack(limit int) *frameStack {
	return &frameStack{limit: limit}
}

func (s *frameStack) push(f resolverFrame) error {
	if len(s.frames) >= s.limit {
		return fmt.Errorf("resolver: suspend/resume stack depth exceeded (%d)", s.limit)
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *frameStack) pop() (resolverFrame, bool) {
	if len(s.frames) == 0 {
		return resolverFrame{}, false
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f, true
}

func (s *frameStack) depth() int {
	return len(s.frames)
}
