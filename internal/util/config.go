// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package util

import "dario.cat/mergo"

// ConfigWithDefaults merges conf over defaults, returning a new value where
// every zero field of conf has been filled in from defaults. conf may be
// nil, in which case a copy of defaults is returned unchanged.
func ConfigWithDefaults[T any](conf *T, defaults *T) (*T, error) {
	if conf == nil {
		merged := *defaults
		return &merged, nil
	}

	merged := *conf
	if err := mergo.Merge(&merged, *defaults); err != nil {
		return nil, err
	}

	return &merged, nil
}

// PointerTo returns a pointer to a copy of v, handy for populating
// pointer-typed optional fields.
func PointerTo[T any](v T) *T {
	return &v
}
