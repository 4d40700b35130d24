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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nightwave-systems/recurdns"
)

func TestRootsReturnsThirteenServers(t *testing.T) {
	v4 := resolver.Roots(false)
	require.Len(t, v4, 13)

	v6 := resolver.Roots(true)
	require.Len(t, v6, 13)
}

func TestRootsCopiesAreIndependent(t *testing.T) {
	first := resolver.Roots(false)
	second := resolver.Roots(false)

	first[0].Host = "mutated."

	require.NotEqual(t, first[0].Host, second[0].Host)
}
