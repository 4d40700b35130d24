// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package util

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
)

// Shuffle permutes s in place using the process-wide CSPRNG, following the
// same Fisher-Yates walk as math/rand.Shuffle but seeded from crypto/rand so
// that server selection can't be predicted or biased by an observer.
func Shuffle[T any](s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := RandIntn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// RandIntn returns a uniform random int in [0, n) read from the process-wide
// CSPRNG. It panics if n <= 0, mirroring math/rand.Intn.
func RandIntn(n int) int {
	if n <= 0 {
		panic("util: RandIntn called with n <= 0")
	}

	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// The system CSPRNG failing is not something callers can sensibly
		// recover from; treat it like an out-of-entropy panic, same as
		// crypto/rand's own documented behavior for Read.
		panic(err)
	}

	return int(v.Int64())
}

// RandUint16 returns a fresh, uniformly random 16-bit value, suitable for use
// as a DNS message ID.
func RandUint16() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return binary.BigEndian.Uint16(b[:])
}

// RandUint16Except returns a random 16-bit value guaranteed not to equal
// avoid. It's used to give every retry of the same query a fresh ID that is
// observably different from the one before it.
func RandUint16Except(avoid uint16) uint16 {
	for {
		v := RandUint16()
		if v != avoid {
			return v
		}
	}
}
