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

// Package hashidx implements the hash index engine: bucket/overflow
// page management, doubling splits, and hashed equality scan, running
// entirely against the oblivious buffer manager.
package hashidx

import (
	"bytes"
	"encoding/binary"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/erigontech/soe/internal/buffer"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/soeerr"
)

// MaxItemSize bounds a single index tuple, conservative relative to
// the page's usable space.
const MaxItemSize = page.BLCKSZ / 8

// MetaBlock is the fixed block number of the metapage.
const MetaBlock uint32 = 0

// HashSalt is the process-wide salt mixed into every key hash. It has
// no security role (the hash is a routing key, not a secret) but keeps
// the function's signature aligned with the reference implementation.
const HashSalt uint32 = 0

// Index is the hash-index engine handle: the relation plus the
// in-memory overflow-bitmap accelerator mirroring the on-disk bitmap
// page's bit array (spec.md §4.7's RoaringBitmap-backed acceleration).
type Index struct {
	Rel *buffer.VRelation

	inUse   *roaring.Bitmap // blocks currently live in some bucket's overflow chain
	free    *roaring.Bitmap // previously-used overflow blocks available for reuse
	bitmapBlk uint32
	hasBitmap bool

	log *zap.Logger
}

// New wraps rel as a hash-index engine. Init must be called once on a
// freshly allocated relation before any Insert/Scan.
func New(rel *buffer.VRelation, log *zap.Logger) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	return &Index{Rel: rel, inUse: roaring.New(), free: roaring.New(), log: log.Named("hashidx")}
}

// Init lays down the metapage and initBuckets primary bucket pages.
func (ix *Index) Init(initBuckets, ffactor uint32) error {
	meta := NewMeta(initBuckets, ffactor)

	mbuf, err := ix.Rel.ReadBuffer(buffer.PNew)
	if err != nil {
		return err
	}
	if ix.Rel.BufferGetBlockno(mbuf) != MetaBlock {
		return soeerr.New(soeerr.Invalid, "hashidx: metapage did not land on block 0")
	}
	writeMetaPage(ix.Rel.BufferGetPage(mbuf), meta)
	if err := ix.Rel.MarkBufferDirty(mbuf); err != nil {
		return err
	}
	ix.Rel.ReleaseBuffer(mbuf)

	for b := uint32(0); b < initBuckets; b++ {
		bbuf, err := ix.Rel.ReadBuffer(buffer.PNew)
		if err != nil {
			return err
		}
		p := ix.Rel.BufferGetPage(bbuf)
		writeSpecial(p, special{Bucket: b, PageID: PageBucket, RealBlk: ix.Rel.BufferGetBlockno(bbuf)})
		if err := ix.Rel.MarkBufferDirty(bbuf); err != nil {
			return err
		}
		ix.Rel.ReleaseBuffer(bbuf)
	}
	return nil
}

func writeMetaPage(p *page.Page, m Meta) {
	p.Init(SpecialAreaSize)
	copy(p.Special(), encodeMeta(m))
}

func readMetaPage(p *page.Page) Meta { return decodeMeta(p.Special()) }

func (ix *Index) getMeta() (Meta, *buffer.Buffer, error) {
	buf, err := ix.Rel.ReadBuffer(MetaBlock)
	if err != nil {
		return Meta{}, nil, err
	}
	return readMetaPage(ix.Rel.BufferGetPage(buf)), buf, nil
}

func (ix *Index) putMeta(buf *buffer.Buffer, m Meta) error {
	copy(ix.Rel.BufferGetPage(buf).Special(), encodeMeta(m))
	if err := ix.Rel.MarkBufferDirty(buf); err != nil {
		return err
	}
	ix.Rel.ReleaseBuffer(buf)
	return nil
}

// formTuple builds an index tuple carrying the key's hash as the first
// 4 payload bytes, followed by the raw key bytes.
func formTuple(tid page.TID, key []byte, hash uint32) page.IndexTuple {
	payload := make([]byte, 4+len(key))
	binary.LittleEndian.PutUint32(payload[0:4], hash)
	copy(payload[4:], key)
	info := uint16(page.IndexTupleHeaderSize+len(payload)) & 0x1fff
	return page.IndexTuple{Self: tid, Info: info, Payload: payload}
}

func tupleHash(it page.IndexTuple) uint32 { return binary.LittleEndian.Uint32(it.Payload[0:4]) }
func tupleKey(it page.IndexTuple) []byte  { return it.Payload[4:] }

// Insert hashes key, locates the primary bucket, and inserts, chaining
// an overflow page and triggering expand_table as needed.
func (ix *Index) Insert(heapTID page.TID, key []byte) error {
	hash := HashBytes(key, HashSalt)

	meta, mbuf, err := ix.getMeta()
	if err != nil {
		return err
	}
	it := formTuple(heapTID, key, hash)
	if it.Size() > MaxItemSize {
		ix.Rel.ReleaseBuffer(mbuf)
		return soeerr.Newf(soeerr.TooLarge, "hashidx: tuple size %d exceeds max %d", it.Size(), MaxItemSize)
	}
	ix.Rel.ReleaseBuffer(mbuf)

	bucket := HashToBucket(hash, meta.MaxBucket, meta.HighMask, meta.LowMask)
	primary := BucketToBlkno(meta, bucket)

	if err := ix.insertIntoBucket(primary, bucket, it); err != nil {
		return err
	}

	meta, mbuf, err = ix.getMeta()
	if err != nil {
		return err
	}
	meta.NTuples++
	needSplit := meta.NTuples > uint64(meta.FFactor)*uint64(meta.MaxBucket+1)
	if err := ix.putMeta(mbuf, meta); err != nil {
		return err
	}

	if needSplit {
		return ix.expandTable()
	}
	return nil
}

// insertIntoBucket walks the chain starting at blkno, inserting it into
// the first page with room, preserving ascending-hash order via a
// linear scan (small pages; a binary search offers no real benefit at
// this scale but the position it lands on is the same either way).
func (ix *Index) insertIntoBucket(blkno uint32, bucket uint32, it page.IndexTuple) error {
	for {
		buf, err := ix.Rel.ReadBuffer(blkno)
		if err != nil {
			return err
		}
		p := ix.Rel.BufferGetPage(buf)
		sp := readSpecial(p)

		if p.FreeSpaceForMultiple(it.Size(), 1) >= 0 {
			pos := findInsertPos(p, tupleHash(it))
			enc := it.Encode()
			off, err := p.AddItem(enc, len(enc), page.AddItemOpts{Offset: pos})
			if err != nil {
				ix.Rel.ReleaseBuffer(buf)
				return err
			}
			if off == page.InvalidOffsetNumber {
				ix.Rel.ReleaseBuffer(buf)
				return soeerr.New(soeerr.PageFull, "hashidx: page reported room but insert failed")
			}
			return ix.Rel.MarkBufferDirtyAndRelease(buf)
		}

		if sp.NextBlk != 0 {
			ix.Rel.ReleaseBuffer(buf)
			blkno = sp.NextBlk
			continue
		}

		// Chain a new overflow page.
		newBlk, err := ix.addOvflPage(buf, bucket)
		if err != nil {
			ix.Rel.ReleaseBuffer(buf)
			return err
		}
		if err := ix.Rel.MarkBufferDirtyAndRelease(buf); err != nil {
			return err
		}
		blkno = newBlk
	}
}

// findInsertPos returns the offset at which a tuple with hashkey h
// should be inserted to keep the page's items in ascending-hash order.
func findInsertPos(p *page.Page, h uint32) uint16 {
	max := p.MaxOffsetNumber()
	for n := page.FirstOffsetNumber; n <= max; n++ {
		id, err := p.ItemID(n)
		if err != nil || id.Flags != page.LPNormal {
			continue
		}
		raw, err := p.Item(n)
		if err != nil {
			continue
		}
		existing := page.DecodeIndexTuple(raw)
		if tupleHash(existing) > h {
			return n
		}
	}
	return page.InvalidOffsetNumber
}

// addOvflPage links a fresh or recycled overflow page after prevBuf's
// page and returns its block number.
func (ix *Index) addOvflPage(prevBuf *buffer.Buffer, bucket uint32) (uint32, error) {
	var newBlk uint32
	if !ix.free.IsEmpty() {
		newBlk = ix.free.Minimum()
		ix.free.Remove(newBlk)
		buf, err := ix.Rel.ReadBuffer(newBlk)
		if err != nil {
			return 0, err
		}
		p := ix.Rel.BufferGetPage(buf)
		p.Init(SpecialAreaSize)
		writeSpecial(p, special{Bucket: bucket, PageID: PageOverflow, RealBlk: newBlk})
		if err := ix.Rel.MarkBufferDirtyAndRelease(buf); err != nil {
			return 0, err
		}
	} else {
		buf, err := ix.Rel.ReadBuffer(buffer.PNew)
		if err != nil {
			return 0, err
		}
		newBlk = ix.Rel.BufferGetBlockno(buf)
		p := ix.Rel.BufferGetPage(buf)
		writeSpecial(p, special{Bucket: bucket, PageID: PageOverflow, RealBlk: newBlk})
		if err := ix.Rel.MarkBufferDirtyAndRelease(buf); err != nil {
			return 0, err
		}
		if err := ix.ensureBitmap(); err != nil {
			return 0, err
		}
	}
	ix.inUse.Add(newBlk)
	if err := ix.flushBitmap(); err != nil {
		return 0, err
	}

	prevSpecial := readSpecial(ix.Rel.BufferGetPage(prevBuf))
	prevSpecial.NextBlk = newBlk
	writeSpecial(ix.Rel.BufferGetPage(prevBuf), prevSpecial)

	nbuf, err := ix.Rel.ReadBuffer(newBlk)
	if err != nil {
		return 0, err
	}
	ns := readSpecial(ix.Rel.BufferGetPage(nbuf))
	ns.PrevBlk = ix.Rel.BufferGetBlockno(prevBuf)
	writeSpecial(ix.Rel.BufferGetPage(nbuf), ns)
	if err := ix.Rel.MarkBufferDirtyAndRelease(nbuf); err != nil {
		return 0, err
	}

	return newBlk, nil
}

// freeOvflPage clears the bitmap bit and rewires the doubly-linked
// overflow chain around blkno.
func (ix *Index) freeOvflPage(blkno uint32) error {
	buf, err := ix.Rel.ReadBuffer(blkno)
	if err != nil {
		return err
	}
	sp := readSpecial(ix.Rel.BufferGetPage(buf))
	prev, next := sp.PrevBlk, sp.NextBlk
	ix.Rel.ReleaseBuffer(buf)

	if prev != 0 {
		pbuf, err := ix.Rel.ReadBuffer(prev)
		if err != nil {
			return err
		}
		ps := readSpecial(ix.Rel.BufferGetPage(pbuf))
		ps.NextBlk = next
		writeSpecial(ix.Rel.BufferGetPage(pbuf), ps)
		if err := ix.Rel.MarkBufferDirtyAndRelease(pbuf); err != nil {
			return err
		}
	}
	if next != 0 {
		nbuf, err := ix.Rel.ReadBuffer(next)
		if err != nil {
			return err
		}
		ns := readSpecial(ix.Rel.BufferGetPage(nbuf))
		ns.PrevBlk = prev
		writeSpecial(ix.Rel.BufferGetPage(nbuf), ns)
		if err := ix.Rel.MarkBufferDirtyAndRelease(nbuf); err != nil {
			return err
		}
	}

	ix.inUse.Remove(blkno)
	ix.free.Add(blkno)
	return ix.flushBitmap()
}

// ensureBitmap lazily allocates the single on-disk bitmap page this
// implementation maintains. New bitmap pages are allocated all-ones
// (every bit "in use") per spec.md §4.7, then immediately corrected to
// reflect ix.inUse once flushed.
func (ix *Index) ensureBitmap() error {
	if ix.hasBitmap {
		return nil
	}
	buf, err := ix.Rel.ReadBuffer(buffer.PNew)
	if err != nil {
		return err
	}
	p := ix.Rel.BufferGetPage(buf)
	p.Init(SpecialAreaSize)
	writeSpecial(p, special{PageID: PageBitmap, RealBlk: ix.Rel.BufferGetBlockno(buf)})
	bits := bitmapArea(p)
	for i := range bits {
		bits[i] = 0xFF
	}
	ix.bitmapBlk = ix.Rel.BufferGetBlockno(buf)
	ix.hasBitmap = true
	return ix.Rel.MarkBufferDirtyAndRelease(buf)
}

func bitmapArea(p *page.Page) []byte {
	end := page.BLCKSZ - p.SpecialSize()
	return p.Bytes[page.HeaderSize:end]
}

// flushBitmap serializes the in-memory accelerator's bit set over
// ix.inUse into the on-disk bitmap page, keeping the persisted wire
// format and the RoaringBitmap-backed accelerator in agreement
// (testable property 4 in spec.md §8).
func (ix *Index) flushBitmap() error {
	if !ix.hasBitmap {
		return nil
	}
	buf, err := ix.Rel.ReadBuffer(ix.bitmapBlk)
	if err != nil {
		return err
	}
	bits := bitmapArea(ix.Rel.BufferGetPage(buf))
	for i := range bits {
		bits[i] = 0
	}
	it := ix.inUse.Iterator()
	for it.HasNext() {
		blk := it.Next()
		byteIdx := blk / 8
		if int(byteIdx) >= len(bits) {
			continue
		}
		bits[byteIdx] |= 1 << (blk % 8)
	}
	return ix.Rel.MarkBufferDirtyAndRelease(buf)
}

// expandTable performs one doubling-schedule split: allocate the new
// bucket, update the metapage, then move qualifying tuples over.
func (ix *Index) expandTable() error {
	meta, mbuf, err := ix.getMeta()
	if err != nil {
		return err
	}

	newBucket := meta.MaxBucket + 1
	oldBucket := newBucket & meta.LowMask

	newIdx := spareindex(newBucket + 1)
	if newIdx > meta.OvflPoint {
		meta.OvflPoint = newIdx
		meta.Spares[newIdx] = meta.Spares[newIdx-1]
	}

	nbuf, err := ix.Rel.ReadBuffer(buffer.PNew)
	if err != nil {
		ix.Rel.ReleaseBuffer(mbuf)
		return err
	}
	newBlk := ix.Rel.BufferGetBlockno(nbuf)
	writeSpecial(ix.Rel.BufferGetPage(nbuf), special{Bucket: newBucket, PageID: PageBucket, RealBlk: newBlk, Flags: FlagBucketBeingPopulated})
	if err := ix.Rel.MarkBufferDirtyAndRelease(nbuf); err != nil {
		ix.Rel.ReleaseBuffer(mbuf)
		return err
	}

	meta.MaxBucket = newBucket
	if newBucket > meta.HighMask {
		meta.LowMask = meta.HighMask
		meta.HighMask = newBucket | meta.LowMask
	}
	if err := ix.putMeta(mbuf, meta); err != nil {
		return err
	}

	oldPrimary := BucketToBlkno(meta, oldBucket)
	if err := ix.markBucketFlag(oldPrimary, FlagBucketBeingSplit, true); err != nil {
		return err
	}

	if err := ix.splitBucket(oldPrimary, oldBucket, newBlk, newBucket, meta); err != nil {
		return err
	}

	if err := ix.markBucketFlag(oldPrimary, FlagBucketBeingSplit, false); err != nil {
		return err
	}
	if err := ix.markBucketFlag(newBlk, FlagBucketBeingPopulated, false); err != nil {
		return err
	}
	if err := ix.markBucketFlag(oldPrimary, FlagNeedsSplitCleanup, true); err != nil {
		return err
	}

	return ix.bucketCleanup(oldPrimary, oldBucket, meta)
}

func (ix *Index) markBucketFlag(blkno uint32, flag uint16, v bool) error {
	buf, err := ix.Rel.ReadBuffer(blkno)
	if err != nil {
		return err
	}
	sp := readSpecial(ix.Rel.BufferGetPage(buf))
	sp.setFlag(flag, v)
	writeSpecial(ix.Rel.BufferGetPage(buf), sp)
	return ix.Rel.MarkBufferDirtyAndRelease(buf)
}

// splitBucket walks every tuple in the old bucket chain, copying
// tuples that now hash to newBucket into the new chain (marked
// MovedBySplit) while leaving tuples that stay in place untouched.
func (ix *Index) splitBucket(oldPrimary, oldBucket, newPrimary, newBucket uint32, meta Meta) error {
	blkno := oldPrimary
	for blkno != 0 {
		buf, err := ix.Rel.ReadBuffer(blkno)
		if err != nil {
			return err
		}
		p := ix.Rel.BufferGetPage(buf)
		max := p.MaxOffsetNumber()
		for n := page.FirstOffsetNumber; n <= max; n++ {
			id, err := p.ItemID(n)
			if err != nil || id.Flags != page.LPNormal {
				continue
			}
			raw, err := p.Item(n)
			if err != nil {
				continue
			}
			it := page.DecodeIndexTuple(raw)
			dest := HashToBucket(tupleHash(it), meta.MaxBucket, meta.HighMask, meta.LowMask)
			if dest != newBucket {
				continue
			}
			moved := it
			moved.SetMovedBySplit(true)
			if err := ix.insertIntoBucket(newPrimary, newBucket, moved); err != nil {
				ix.Rel.ReleaseBuffer(buf)
				return err
			}
		}
		next := readSpecial(p).NextBlk
		ix.Rel.ReleaseBuffer(buf)
		blkno = next
	}
	return nil
}

// bucketCleanup removes tuples from the old chain whose hash_to_bucket
// now disagrees with oldBucket (the ones copied over during split),
// then squeezes the chain.
func (ix *Index) bucketCleanup(oldPrimary, oldBucket uint32, meta Meta) error {
	blkno := oldPrimary
	for blkno != 0 {
		buf, err := ix.Rel.ReadBuffer(blkno)
		if err != nil {
			return err
		}
		p := ix.Rel.BufferGetPage(buf)
		max := p.MaxOffsetNumber()
		var dead []uint16
		for n := page.FirstOffsetNumber; n <= max; n++ {
			id, err := p.ItemID(n)
			if err != nil || id.Flags != page.LPNormal {
				continue
			}
			raw, _ := p.Item(n)
			it := page.DecodeIndexTuple(raw)
			if HashToBucket(tupleHash(it), meta.MaxBucket, meta.HighMask, meta.LowMask) != oldBucket {
				dead = append(dead, n)
			}
		}
		if len(dead) > 0 {
			p.MultiDelete(dead)
		}
		sp := readSpecial(p)
		sp.setFlag(FlagNeedsSplitCleanup, false)
		writeSpecial(p, sp)
		next := sp.NextBlk
		if err := ix.Rel.MarkBufferDirtyAndRelease(buf); err != nil {
			return err
		}
		blkno = next
	}
	return ix.squeezeBucket(oldPrimary)
}

// squeezeBucket frees every emptied overflow page in the chain; tuples
// are not moved between pages.
func (ix *Index) squeezeBucket(primary uint32) error {
	blkno := primary
	for {
		buf, err := ix.Rel.ReadBuffer(blkno)
		if err != nil {
			return err
		}
		p := ix.Rel.BufferGetPage(buf)
		sp := readSpecial(p)
		empty := p.MaxOffsetNumber() == 0
		next := sp.NextBlk
		isOverflow := sp.PageID == PageOverflow
		ix.Rel.ReleaseBuffer(buf)

		if empty && isOverflow {
			if err := ix.freeOvflPage(blkno); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		blkno = next
	}
}

// Scan is an equality-scan descriptor over one key.
type Scan struct {
	ix       *Index
	key      []byte
	hash     uint32
	curBlock uint32
	items    []page.IndexTuple
	idx      int
	started  bool
	done     bool
}

// BeginScan builds a single-key equality scan opaque.
func (ix *Index) BeginScan(key []byte) *Scan {
	return &Scan{ix: ix, key: key, hash: HashBytes(key, HashSalt)}
}

// First locates the primary bucket and loads the first page of matches.
func (s *Scan) First() (page.IndexTuple, bool, error) {
	meta, mbuf, err := s.ix.getMeta()
	if err != nil {
		return page.IndexTuple{}, false, err
	}
	s.ix.Rel.ReleaseBuffer(mbuf)
	bucket := HashToBucket(s.hash, meta.MaxBucket, meta.HighMask, meta.LowMask)
	s.curBlock = BucketToBlkno(meta, bucket)
	s.started = true
	if err := s.readPage(); err != nil {
		return page.IndexTuple{}, false, err
	}
	return s.Next()
}

func (s *Scan) readPage() error {
	for {
		if s.curBlock == 0 {
			s.done = true
			return nil
		}
		buf, err := s.ix.Rel.ReadBuffer(s.curBlock)
		if err != nil {
			return err
		}
		p := s.ix.Rel.BufferGetPage(buf)
		max := p.MaxOffsetNumber()
		s.items = s.items[:0]
		s.idx = 0
		for n := page.FirstOffsetNumber; n <= max; n++ {
			id, err := p.ItemID(n)
			if err != nil || id.Flags != page.LPNormal {
				continue
			}
			raw, err := p.Item(n)
			if err != nil {
				continue
			}
			it := page.DecodeIndexTuple(raw)
			if tupleHash(it) == s.hash && bytes.Equal(tupleKey(it), s.key) {
				s.items = append(s.items, it)
			}
		}
		next := readSpecial(p).NextBlk
		s.ix.Rel.ReleaseBuffer(buf)
		if len(s.items) > 0 {
			s.curBlock = next
			return nil
		}
		if next == 0 {
			s.done = true
			return nil
		}
		s.curBlock = next
	}
}

// Next advances the scan, returning (tuple, true, nil) on a match or
// (_, false, nil) at end of scan.
func (s *Scan) Next() (page.IndexTuple, bool, error) {
	if !s.started {
		return s.First()
	}
	for {
		if s.idx < len(s.items) {
			it := s.items[s.idx]
			s.idx++
			return it, true, nil
		}
		if s.done {
			return page.IndexTuple{}, false, nil
		}
		if err := s.readPage(); err != nil {
			return page.IndexTuple{}, false, err
		}
		if len(s.items) == 0 && s.done {
			return page.IndexTuple{}, false, nil
		}
	}
}
