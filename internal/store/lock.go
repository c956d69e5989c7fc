// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package store

import "errors"

const lockName = ".lock"

// ErrLocked is returned by Lock when another run holds the store.
var ErrLocked = errors.New("store is locked by another run")
