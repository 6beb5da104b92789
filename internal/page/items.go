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

package page

import "github.com/erigontech/soe/internal/soeerr"

// lpArrayOffset returns the byte offset of the n'th (1-based) line
// pointer within the page.
func lpArrayOffset(n uint16) int {
	return HeaderSize + int(n-1)*itemIDSize
}

// MaxOffsetNumber returns the number of line pointer slots currently in
// the array (some may be LPUnused).
func (p *Page) MaxOffsetNumber() uint16 {
	h := p.header()
	if int(h.Lower) <= HeaderSize {
		return 0
	}
	return uint16((int(h.Lower) - HeaderSize) / itemIDSize)
}

// ItemID returns the line pointer at offset n (1-based). Returns an
// error if n is out of range.
func (p *Page) ItemID(n uint16) (ItemID, error) {
	if n < FirstOffsetNumber || n > p.MaxOffsetNumber() {
		return ItemID{}, soeerr.Newf(soeerr.Invalid, "page: offset %d out of range (max %d)", n, p.MaxOffsetNumber())
	}
	off := lpArrayOffset(n)
	return decodeItemID(p.Bytes[off : off+itemIDSize]), nil
}

func (p *Page) setItemID(n uint16, id ItemID) {
	off := lpArrayOffset(n)
	enc := encodeItemID(id)
	copy(p.Bytes[off:off+itemIDSize], enc[:])
}

// Item returns the tuple bytes addressed by item id n.
func (p *Page) Item(n uint16) ([]byte, error) {
	id, err := p.ItemID(n)
	if err != nil {
		return nil, err
	}
	if id.Flags != LPNormal {
		return nil, soeerr.Newf(soeerr.Invalid, "page: item %d is not NORMAL (flags=%d)", n, id.Flags)
	}
	start := int(id.Offset)
	end := start + int(id.Length)
	if start < 0 || end > len(p.Bytes) {
		return nil, soeerr.Newf(soeerr.Invalid, "page: item %d out of bounds [%d,%d)", n, start, end)
	}
	return p.Bytes[start:end], nil
}

// FreeSpace returns the number of unallocated bytes strictly between the
// line pointer array and the tuple heap.
func (p *Page) FreeSpace() int {
	h := p.header()
	free := int(h.Upper) - int(h.Lower)
	if free < 0 {
		return 0
	}
	return free
}

// FreeSpaceForMultiple estimates the free space available for n more
// tuples of total payload size totalSize, accounting for the additional
// line pointers each tuple requires.
func (p *Page) FreeSpaceForMultiple(totalSize int, n int) int {
	return p.FreeSpace() - totalSize - n*itemIDSize
}

// Special returns the page's special area, interpreted by the caller.
func (p *Page) Special() []byte {
	h := p.header()
	return p.Bytes[h.Special:]
}

// SpecialSize returns the size of the special area.
func (p *Page) SpecialSize() int {
	return BLCKSZ - int(p.header().Special)
}

// findFreeSlot scans the line pointer array for a recyclable (LPUnused)
// slot. Returns (0, false) if none exists.
func (p *Page) findFreeSlot() (uint16, bool) {
	max := p.MaxOffsetNumber()
	for n := FirstOffsetNumber; n <= max; n++ {
		id, _ := p.ItemID(n)
		if id.Flags == LPUnused {
			return n, true
		}
	}
	return 0, false
}

// AddItemOpts controls AddItem's placement behavior.
type AddItemOpts struct {
	// Offset, when != InvalidOffsetNumber, requests a specific slot:
	// either overwrite an unused slot there, or insert-with-shuffle.
	Offset uint16
	// Overwrite allows reusing an existing slot in place rather than
	// shuffling the array to insert at Offset.
	Overwrite bool
	// IsHeap caps the number of items per page at the heap-tuple limit
	// (MaxHeapTuplesPerPage), matching heap insertion semantics.
	IsHeap bool
}

// MaxHeapTuplesPerPage bounds heap_insert so a page's line-pointer array
// cannot itself starve the tuple heap; chosen generously relative to
// BLCKSZ / (smallest plausible heap tuple + line pointer).
const MaxHeapTuplesPerPage = BLCKSZ / 32

// AddItem places item on the page per opts, allocating backing storage
// by decreasing Upper by aligned(len(item)). Returns the chosen offset,
// or InvalidOffsetNumber if the page has no room.
func (p *Page) AddItem(item []byte, size int, opts AddItemOpts) (uint16, error) {
	if size <= 0 {
		size = len(item)
	}
	alignedSize := maxAlign(size)

	h := p.header()
	max := p.MaxOffsetNumber()

	var offsetNumber uint16
	needsNewSlot := true

	if opts.Offset != InvalidOffsetNumber && opts.Offset <= max {
		offsetNumber = opts.Offset
		if opts.Overwrite {
			id, _ := p.ItemID(offsetNumber)
			if id.Flags != LPUnused {
				return InvalidOffsetNumber, soeerr.Newf(soeerr.Invalid, "page: slot %d is not unused, cannot overwrite", offsetNumber)
			}
			needsNewSlot = false
		}
		// else: insert-with-shuffle at this offset, handled below.
	} else if opts.Offset != InvalidOffsetNumber {
		offsetNumber = opts.Offset
	} else if slot, ok := p.findFreeSlot(); ok {
		offsetNumber = slot
		needsNewSlot = false
	} else {
		offsetNumber = max + 1
	}

	if opts.IsHeap && int(max) >= MaxHeapTuplesPerPage {
		return InvalidOffsetNumber, soeerr.New(soeerr.PageFull, "page: heap tuples per page limit reached")
	}

	if int(h.Upper)-alignedSize < int(h.Lower)+itemIDSize {
		return InvalidOffsetNumber, nil // caller checks for InvalidOffsetNumber
	}

	newUpper := int(h.Upper) - alignedSize
	copy(p.Bytes[newUpper:newUpper+size], item[:size])

	if needsNewSlot && offsetNumber <= max {
		// Insert-with-shuffle: push every item id at >= offsetNumber up
		// by one slot to keep the array in logical order; engines are
		// responsible for placing the tuple in the intended rank, this
		// only makes room in the line pointer array itself.
		for n := int(max); n >= int(offsetNumber); n-- {
			id, _ := p.ItemID(uint16(n))
			p.setItemID(uint16(n+1), id)
		}
	}

	p.setItemID(offsetNumber, ItemID{Offset: uint32(newUpper), Flags: LPNormal, Length: uint32(size)})

	newLower := int(h.Lower)
	if needsNewSlot {
		newLower = int(h.Lower) + itemIDSize
	}
	h.Lower = uint16(newLower)
	h.Upper = uint16(newUpper)
	p.setHeader(h)

	return offsetNumber, nil
}

func maxAlign(n int) int {
	const align = 8
	return (n + align - 1) &^ (align - 1)
}

// MultiDelete compacts away the deleted items at the given offsets,
// preserving the relative order of the surviving items. It does not
// reclaim the storage of deleted tuples from the heap (no vacuum, per
// spec Non-goals) — only the line pointer array is repacked.
func (p *Page) MultiDelete(offsets []uint16) {
	dead := make(map[uint16]bool, len(offsets))
	for _, o := range offsets {
		dead[o] = true
	}
	max := p.MaxOffsetNumber()
	survivors := make([]ItemID, 0, max)
	for n := FirstOffsetNumber; n <= max; n++ {
		id, _ := p.ItemID(n)
		if dead[n] || id.Flags == LPUnused {
			continue
		}
		survivors = append(survivors, id)
	}
	h := p.header()
	for i, id := range survivors {
		p.setItemID(uint16(i+1), id)
	}
	h.Lower = uint16(HeaderSize + len(survivors)*itemIDSize)
	p.setHeader(h)
}
