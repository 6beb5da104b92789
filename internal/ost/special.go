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

// Package ost implements the static ordered search tree: a read-only,
// level-partitioned forest of per-level ORAMs with dummy-access padding
// so every external search trace has the same depth.
package ost

import (
	"encoding/binary"

	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
)

// special is the OST page footer: sibling pointer for leaf steppage,
// a leaf flag, and the real-block sentinel the oblivious file adapter
// needs.
type special struct {
	NextBlk uint32
	IsLeaf  bool
	RealBlk uint32
}

// SpecialAreaSize is the OST family's fixed special-area size.
const SpecialAreaSize = 4 + 1 + 4

func readSpecial(p *page.Page) special {
	buf := p.Special()
	return special{
		NextBlk: binary.LittleEndian.Uint32(buf[0:4]),
		IsLeaf:  buf[4] != 0,
		RealBlk: binary.LittleEndian.Uint32(buf[5:9]),
	}
}

func writeSpecial(p *page.Page, s special) {
	buf := p.Special()
	binary.LittleEndian.PutUint32(buf[0:4], s.NextBlk)
	if s.IsLeaf {
		buf[4] = 1
	} else {
		buf[4] = 0
	}
	binary.LittleEndian.PutUint32(buf[5:9], s.RealBlk)
}

// Dummy builds a blank OST page for ofile.Adapter's DummyPageInit hook.
func Dummy() *page.Page {
	p := page.New()
	p.Init(SpecialAreaSize)
	writeSpecial(p, special{RealBlk: oram.DummyBlock})
	return p
}

func RealBlockOf(p *page.Page) uint32 { return readSpecial(p).RealBlk }

func SetRealBlock(p *page.Page, real uint32) {
	s := readSpecial(p)
	s.RealBlk = real
	writeSpecial(p, s)
}

// NewLeafPage builds a pre-built OST leaf page for a bulk loader to
// hand to Session.AddIndexBlock (spec.md §4.9's Load contract). next is
// the right-sibling block number within this level's file, or 0 if
// this is the last leaf.
func NewLeafPage(next uint32, items ...page.IndexTuple) *page.Page {
	p := page.New()
	p.Init(SpecialAreaSize)
	writeSpecial(p, special{NextBlk: next, IsLeaf: true})
	for _, it := range items {
		enc := it.Encode()
		if _, err := p.AddItem(enc, len(enc), page.AddItemOpts{Offset: page.InvalidOffsetNumber}); err != nil {
			panic(err)
		}
	}
	return p
}

// NewInternalPage builds a pre-built OST internal page of downlinks
// for a bulk loader.
func NewInternalPage(children ...page.IndexTuple) *page.Page {
	p := page.New()
	p.Init(SpecialAreaSize)
	writeSpecial(p, special{IsLeaf: false})
	for _, it := range children {
		enc := it.Encode()
		if _, err := p.AddItem(enc, len(enc), page.AddItemOpts{Offset: page.InvalidOffsetNumber}); err != nil {
			panic(err)
		}
	}
	return p
}

// Downlink builds an internal-page index tuple pointing at child,
// carrying key as the separator.
func Downlink(child uint32, key []byte) page.IndexTuple { return downlink(child, key) }

// LeafItem builds a leaf-page index tuple for heapTID carrying key.
func LeafItem(heapTID page.TID, key []byte) page.IndexTuple { return leafItem(heapTID, key) }
