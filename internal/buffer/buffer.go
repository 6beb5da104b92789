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

// Package buffer implements the virtual relation: the logical-to-
// oblivious block translation, in-memory dirty-page list, free-space
// map, and page-initialization dispatch every engine runs on top of.
package buffer

import (
	"go.uber.org/zap"

	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/soeerr"
)

// PNew requests extension: "give me a fresh logical block".
const PNew uint32 = 0xFFFFFFFF

// prfContext is implemented by oblivious file adapters (internal/ofile)
// that want the relation's current OST level and protocol counter
// pushed in before every access, so the PRF token computed for that
// access reflects the caller's position (spec.md §3/§4.2). A File that
// doesn't implement it (e.g. a test double) is simply not labeled.
type prfContext interface {
	SetPRFContext(level, counter uint32)
}

// prfTokenSource is implemented by adapters that expose the token they
// last computed, surfaced here as the virtual relation's "current
// token" (spec.md §3).
type prfTokenSource interface {
	LastPRFToken() [16]byte
}

// PageFamily supplies the variant-specific behavior the buffer manager
// dispatches to, per spec.md §9's "tagged sum type with per-variant
// dispatch, not an inheritance hierarchy" strategy: Heap, Hash,
// DynamicBTree, and OST all implement this once, and Init takes one as
// a parameter rather than the buffer manager switching on a type tag.
type PageFamily interface {
	// PageInit initializes a freshly allocated page in place.
	PageInit(p *page.Page)
	// SpecialAreaSize is this family's special area size in bytes.
	SpecialAreaSize() int
}

// Buffer is a resident, possibly-dirty page plus its logical block
// number.
type Buffer struct {
	BlockNumber uint32
	Page        *page.Page
	Dirty       bool
}

// VRelation is the per-relation in-memory handle: ORAM state, block
// count, current-append block, per-block free-space counters, and the
// resident buffer list.
type VRelation struct {
	Oram   oram.State
	File   oram.File
	Family PageFamily
	Oid    uint32

	lastFreeBlock uint32 // number_of_blocks(rel)
	currentBlock  uint32 // free_space_block bookkeeping
	freeSpace     map[uint32]int

	resident map[uint32]*Buffer

	// Protocol counters consumed by the PRF, per spec.md §3.
	RCounter          uint32
	LeafCurrentCounter uint32
	HeapBlockCounter  uint32
	Level             uint32
	Token             [16]byte

	log *zap.Logger
}

// Init creates the handle for an already-host-initialized relation of
// nblocks blocks.
func Init(oramState oram.State, file oram.File, family PageFamily, oid uint32, nblocks uint32, log *zap.Logger) *VRelation {
	if log == nil {
		log = zap.NewNop()
	}
	return &VRelation{
		Oram:          oramState,
		File:          file,
		Family:        family,
		Oid:           oid,
		lastFreeBlock: nblocks,
		freeSpace:     make(map[uint32]int),
		resident:      make(map[uint32]*Buffer),
		log:           log.Named("bufmgr"),
	}
}

// NumberOfBlocks returns lastFreeBlock.
func (r *VRelation) NumberOfBlocks() uint32 { return r.lastFreeBlock }

// labelAccess bumps the relation's protocol counter and, if the
// backing file is a PRF-aware oblivious file adapter, pushes the
// current (level, counter) into it before the access and captures the
// token it computed back onto the relation afterward. RCounter is the
// generic per-relation stream every engine shares through the buffer
// manager; LeafCurrentCounter and HeapBlockCounter remain available for
// engines (e.g. the B-tree's per-offset counters, spec.md §3) that need
// a distinct counter discipline of their own.
func (r *VRelation) labelAccess() {
	r.RCounter++
	if pc, ok := r.File.(prfContext); ok {
		pc.SetPRFContext(r.Level, r.RCounter)
	}
}

func (r *VRelation) captureToken() {
	if ts, ok := r.File.(prfTokenSource); ok {
		r.Token = ts.LastPRFToken()
	}
}

// ReadBuffer returns a buffer handle for blkno. blkno == PNew allocates
// the next free logical block and page-initializes it. A resident hit
// never touches the ORAM (invariant 5: at most one resident copy per
// logical block).
func (r *VRelation) ReadBuffer(blkno uint32) (*Buffer, error) {
	if blkno == PNew {
		return r.extend()
	}
	if blkno > r.lastFreeBlock {
		return nil, soeerr.Newf(soeerr.OutOfBounds, "bufmgr: block %d exceeds lastFreeBlock %d", blkno, r.lastFreeBlock)
	}
	if b, ok := r.resident[blkno]; ok {
		return b, nil
	}

	r.labelAccess()
	plb, err := r.Oram.Read(r.File, blkno)
	r.captureToken()
	if err != nil {
		return nil, err
	}
	var p *page.Page
	if plb.RealBlockNumber == oram.DummyBlock {
		p = page.New()
		r.Family.PageInit(p)
	} else {
		p, err = page.Wrap(plb.Bytes)
		if err != nil {
			return nil, err
		}
	}
	b := &Buffer{BlockNumber: blkno, Page: p}
	r.resident[blkno] = b
	return b, nil
}

func (r *VRelation) extend() (*Buffer, error) {
	blkno := r.lastFreeBlock
	r.lastFreeBlock++
	p := page.New()
	r.Family.PageInit(p)
	b := &Buffer{BlockNumber: blkno, Page: p}
	r.resident[blkno] = b
	r.freeSpace[blkno] = 0
	return b, nil
}

// BufferGetPage returns the buffer's page.
func (r *VRelation) BufferGetPage(b *Buffer) *page.Page { return b.Page }

// BufferGetBlockno returns the buffer's logical block number.
func (r *VRelation) BufferGetBlockno(b *Buffer) uint32 { return b.BlockNumber }

// MarkBufferDirty flushes the page through the adapter's write —
// encryption happens inside Oram.Write, which delegates to the
// oblivious file adapter passed at construction.
func (r *VRelation) MarkBufferDirty(b *Buffer) error {
	block := oram.PLBlock{RealBlockNumber: b.BlockNumber, Size: page.BLCKSZ, Bytes: b.Page.Bytes}
	r.labelAccess()
	err := r.Oram.Write(r.File, b.BlockNumber, block)
	r.captureToken()
	if err != nil {
		return err
	}
	b.Dirty = false
	return nil
}

// MarkBufferDirtyAndRelease is the common pairing engines use once a
// page mutation is complete: write back, then drop from the resident
// list.
func (r *VRelation) MarkBufferDirtyAndRelease(b *Buffer) error {
	if err := r.MarkBufferDirty(b); err != nil {
		return err
	}
	r.ReleaseBuffer(b)
	return nil
}

// ReleaseBuffer drops b from the resident list. This is a purely
// in-memory release: MarkBufferDirty is the only operation that forces
// a write, so engine code must call it before ReleaseBuffer for any
// modified page (spec.md §4.4).
func (r *VRelation) ReleaseBuffer(b *Buffer) {
	delete(r.resident, b.BlockNumber)
}

// FreeSpaceBlock returns PNew if the current block has zero items and
// is not below lastFreeBlock, else the current block: the heap's
// append-only free-space map. A current block below lastFreeBlock is
// returned even when it has zero items.
func (r *VRelation) FreeSpaceBlock() uint32 {
	if r.freeSpace[r.currentBlock] == 0 && r.currentBlock >= r.lastFreeBlock {
		return PNew
	}
	return r.currentBlock
}

// UpdateFSM bumps the current block's freespace counter.
func (r *VRelation) UpdateFSM() {
	r.freeSpace[r.currentBlock]++
}

// BufferFull advances to the next block once the current one can hold
// no more tuples.
func (r *VRelation) BufferFull() {
	r.currentBlock++
}

// Close writes back all dirty pages and releases the relation. Callers
// that already called MarkBufferDirty for every mutation they made
// will find this a no-op beyond releasing memory; Close exists as a
// safety net so a relation is never silently left half-flushed.
func (r *VRelation) Close() error {
	for _, b := range r.resident {
		if b.Dirty {
			if err := r.MarkBufferDirty(b); err != nil {
				return err
			}
		}
	}
	r.resident = make(map[uint32]*Buffer)
	return nil
}
