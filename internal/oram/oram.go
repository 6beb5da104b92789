// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package oram defines the contract the trusted core requires from the
// external ORAM library: a read-path/eviction primitive addressed by
// logical block number, given an oblivious-file callback to the host.
// The library's internals (position map, eviction schedule) are out of
// scope (spec.md §1) — this package only specifies the interface the
// rest of the core programs against, plus a non-oblivious reference
// implementation used by tests.
package oram

// PLBlock is a physically-addressed block carrying the payload the
// adapter layer hands to the ORAM library and gets back from it.
type PLBlock struct {
	RealBlockNumber uint32
	Size            uint32
	Bytes           []byte
}

// DummyBlock is the sentinel real-block-number for pages that have
// never held a real logical block.
const DummyBlock uint32 = 0xFFFFFFFF

// File is the oblivious-file callback an ORAM instance reads/writes
// through. Implementations live in internal/ofile.
type File interface {
	Read(blockNo uint32) (PLBlock, error)
	Write(block PLBlock, blockNo uint32) error
}

// State is one ORAM instance over one named backing file. The engine
// never inspects its internal position map; it only issues logical
// Read/Write calls and trusts the access-pattern-indistinguishability
// guarantee implementation of this interface provides.
type State interface {
	// Read obliviously fetches the page mapped to logical block lba,
	// routing physical I/O through f.
	Read(f File, lba uint32) (PLBlock, error)
	// Write obliviously stores block at logical block lba, routing
	// physical I/O through f.
	Write(f File, lba uint32, block PLBlock) error
	// Position returns the current physical slot for lba, if the ORAM
	// implementation exposes one (used only for diagnostics/tests).
	Position(lba uint32) (uint32, bool)
}
