// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

import "strconv"

// Handle is the engine's name for an association. It has pointer width because
// engines usually hand out addresses of their own structures, but this layer
// never dereferences it, only compares and uses it as a map key.
type Handle uintptr

// NoHandle is returned by the engine when it could not allocate an association.
const NoHandle Handle = 0

func (h Handle) Valid() bool { return h != NoHandle }

func (h Handle) String() string {
	return "0x" + strconv.FormatUint(uint64(h), 16)
}
