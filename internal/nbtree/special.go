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

// Package nbtree implements the dynamic B-tree engine: Lehman-Yao
// style search, insert, split, and root creation, assuming a single
// writer (no concurrent-split recovery, no right-move on reads).
package nbtree

import (
	"encoding/binary"

	"github.com/erigontech/soe/internal/page"
)

// MaxTrackedOffsets bounds the per-offset PRF counter array carried in
// every page's special area. This caps how many downlinks/items on one
// page can carry an independent read-descent counter; generous for the
// tree sizes this engine is exercised at.
const MaxTrackedOffsets = 64

// Page-level flags, independent bits.
const (
	FlagLeaf uint16 = 1 << iota
	FlagRoot
	FlagDeleted
	FlagMeta
	FlagHalfDead
	FlagSplitEnd
	FlagHasGarbage
	FlagIncompleteSplit
)

// InvalidBlock is the "no sibling/parent" sentinel; block 0 is always
// the metapage and is never a leaf/internal data page.
const InvalidBlock uint32 = 0

// special is the dynamic B-tree's per-page footer.
type special struct {
	PrevBlk uint32
	NextBlk uint32
	Level   uint32
	Flags   uint16
	RealBlk uint32
	Counters [MaxTrackedOffsets]uint32
}

// SpecialAreaSize is this family's fixed special-area size.
const SpecialAreaSize = 4 + 4 + 4 + 2 + 4 + MaxTrackedOffsets*4

func readSpecial(p *page.Page) special {
	buf := p.Special()
	var s special
	s.PrevBlk = binary.LittleEndian.Uint32(buf[0:4])
	s.NextBlk = binary.LittleEndian.Uint32(buf[4:8])
	s.Level = binary.LittleEndian.Uint32(buf[8:12])
	s.Flags = binary.LittleEndian.Uint16(buf[12:14])
	s.RealBlk = binary.LittleEndian.Uint32(buf[14:18])
	off := 18
	for i := 0; i < MaxTrackedOffsets; i++ {
		s.Counters[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	return s
}

func writeSpecial(p *page.Page, s special) {
	buf := p.Special()
	binary.LittleEndian.PutUint32(buf[0:4], s.PrevBlk)
	binary.LittleEndian.PutUint32(buf[4:8], s.NextBlk)
	binary.LittleEndian.PutUint32(buf[8:12], s.Level)
	binary.LittleEndian.PutUint16(buf[12:14], s.Flags)
	binary.LittleEndian.PutUint32(buf[14:18], s.RealBlk)
	off := 18
	for i := 0; i < MaxTrackedOffsets; i++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], s.Counters[i])
		off += 4
	}
}

func (s special) hasFlag(f uint16) bool { return s.Flags&f != 0 }

func (s *special) setFlag(f uint16, v bool) {
	if v {
		s.Flags |= f
	} else {
		s.Flags &^= f
	}
}

// HighKeyOffset is the line-pointer offset reserved for the high key on
// a non-rightmost page.
const HighKeyOffset = page.FirstOffsetNumber

// isRightmost reports whether a page has no right sibling, i.e. carries
// no high key.
func (s special) isRightmost() bool { return s.NextBlk == InvalidBlock }
