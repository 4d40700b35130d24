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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameStackRespectsLimit(t *testing.T) {
	stack := newFrameStack(2)

	require.NoError(t, stack.push(resolverFrame{index: 0}))
	require.NoError(t, stack.push(resolverFrame{index: 1}))
	require.Error(t, stack.push(resolverFrame{index: 2}))
	require.Equal(t, 2, stack.depth())
}

func TestFrameStackPopOrderIsLIFO(t *testing.T) {
	stack := newFrameStack(4)

	require.NoError(t, stack.push(resolverFrame{index: 1}))
	require.NoError(t, stack.push(resolverFrame{index: 2}))

	f, ok := stack.pop()
	require.True(t, ok)
	require.Equal(t, 2, f.index)

	f, ok = stack.pop()
	require.True(t, ok)
	require.Equal(t, 1, f.index)

	_, ok = stack.pop()
	require.False(t, ok)
}
