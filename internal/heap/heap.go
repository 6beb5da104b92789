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

// Package heap implements the append-only heap family: sequential
// insertion of tuples and TID-keyed fetch. There is no delete or
// vacuum.
package heap

import (
	"github.com/erigontech/soe/internal/buffer"
	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/soeerr"
)

// SpecialAreaSize is the heap family's special area: just enough to
// carry the real-block-number sentinel the oblivious file adapter
// needs to distinguish a dummy page from a written one.
const SpecialAreaSize = 4

// MaxTupleSize bounds a single insert, matching the front door's
// trust-boundary validation ceiling (spec.md §4.10).
const MaxTupleSize = page.BLCKSZ / 4

// Family implements buffer.PageFamily for heap pages.
type Family struct{ TableOid uint32 }

func (Family) PageInit(p *page.Page) {
	p.Init(SpecialAreaSize)
	setRealBlock(p, oram.DummyBlock)
}

func (Family) SpecialAreaSize() int { return SpecialAreaSize }

func setRealBlock(p *page.Page, real uint32) {
	sp := p.Special()
	sp[0] = byte(real)
	sp[1] = byte(real >> 8)
	sp[2] = byte(real >> 16)
	sp[3] = byte(real >> 24)
}

// RealBlockOf recovers the real block number stamped in a heap page's
// special area, for wiring into ofile.Adapter.
func RealBlockOf(p *page.Page) uint32 {
	sp := p.Special()
	return uint32(sp[0]) | uint32(sp[1])<<8 | uint32(sp[2])<<16 | uint32(sp[3])<<24
}

// SetRealBlock wires into ofile.Adapter's SetRealBlock hook.
func SetRealBlock(p *page.Page, real uint32) { setRealBlock(p, real) }

// Dummy builds a blank heap page for ofile.Adapter's DummyPageInit hook.
func Dummy() *page.Page {
	p := page.New()
	Family{}.PageInit(p)
	return p
}

// Insert appends data as a new heap tuple, maintaining the free-space
// map and stamping (blkno, offnum) into the returned tuple.
func Insert(rel *buffer.VRelation, tableOid uint32, data []byte) (page.HeapTuple, error) {
	if len(data) > MaxTupleSize {
		return page.HeapTuple{}, soeerr.Newf(soeerr.TooLarge, "heap: tuple size %d exceeds max %d", len(data), MaxTupleSize)
	}

	blkno := rel.FreeSpaceBlock()
	buf, err := rel.ReadBuffer(blkno)
	if err != nil {
		return page.HeapTuple{}, err
	}
	p := rel.BufferGetPage(buf)
	if RealBlockOf(p) == oram.DummyBlock && blkno != buffer.PNew {
		return page.HeapTuple{}, soeerr.New(soeerr.Invalid, "heap: current free-space block is a dummy page")
	}

	if p.FreeSpaceForMultiple(len(data), 1) < 0 {
		rel.BufferFull()
		next := rel.FreeSpaceBlock()
		buf, err = rel.ReadBuffer(next)
		if err != nil {
			return page.HeapTuple{}, err
		}
		p = rel.BufferGetPage(buf)
	}

	off, err := p.AddItem(data, len(data), page.AddItemOpts{IsHeap: true})
	if err != nil {
		return page.HeapTuple{}, err
	}
	if off == page.InvalidOffsetNumber {
		return page.HeapTuple{}, soeerr.New(soeerr.PageFull, "heap: page has no room for tuple")
	}

	tup := page.HeapTuple{
		Self:     page.TID{BlockNumber: rel.BufferGetBlockno(buf), OffsetNumber: off},
		Length:   len(data),
		TableOid: tableOid,
		Data:     data,
	}
	setRealBlock(p, rel.BufferGetBlockno(buf))

	if err := rel.MarkBufferDirty(buf); err != nil {
		return page.HeapTuple{}, err
	}
	rel.ReleaseBuffer(buf)
	rel.UpdateFSM()

	return tup, nil
}

// GetTuple fetches the heap tuple addressed by tid.
func GetTuple(rel *buffer.VRelation, tid page.TID) (page.HeapTuple, error) {
	buf, err := rel.ReadBuffer(tid.BlockNumber)
	if err != nil {
		return page.HeapTuple{}, err
	}
	p := rel.BufferGetPage(buf)
	if rel.BufferGetBlockno(buf) != tid.BlockNumber {
		rel.ReleaseBuffer(buf)
		return page.HeapTuple{}, soeerr.New(soeerr.Invalid, "heap: block number mismatch for tid")
	}

	id, err := p.ItemID(tid.OffsetNumber)
	if err != nil {
		rel.ReleaseBuffer(buf)
		return page.HeapTuple{}, err
	}
	if id.Flags != page.LPNormal {
		rel.ReleaseBuffer(buf)
		return page.HeapTuple{}, soeerr.New(soeerr.Invalid, "heap: tid does not address a normal item")
	}

	raw, err := p.Item(tid.OffsetNumber)
	if err != nil {
		rel.ReleaseBuffer(buf)
		return page.HeapTuple{}, err
	}
	data := make([]byte, len(raw))
	copy(data, raw)

	rel.ReleaseBuffer(buf)

	return page.HeapTuple{
		Self:   tid,
		Length: len(data),
		Data:   data,
	}, nil
}

var _ buffer.PageFamily = Family{}
