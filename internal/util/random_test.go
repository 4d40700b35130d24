// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package util_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nightwave-systems/recurdns/internal/util"
)

func TestShufflePreservesElements(t *testing.T) {
	s := []int{1, 2, 3, 4, 5}
	orig := append([]int(nil), s...)

	util.Shuffle(s)

	require.ElementsMatch(t, orig, s)
}

func TestRandIntnBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := util.RandIntn(10)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 10)
	}
}

func TestRandIntnPanicsOnNonPositive(t *testing.T) {
	require.Panics(t, func() { util.RandIntn(0) })
}

func TestRandUint16ExceptDiffers(t *testing.T) {
	for i := 0; i < 100; i++ {
		avoid := util.RandUint16()
		v := util.RandUint16Except(avoid)
		require.NotEqual(t, avoid, v)
	}
}
