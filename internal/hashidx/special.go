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

package hashidx

import (
	"encoding/binary"

	"github.com/erigontech/soe/internal/page"
)

// PageType tags a hash-index page's role.
type PageType uint8

const (
	PageMeta PageType = iota
	PageBucket
	PageOverflow
	PageBitmap
)

// State flags, independent of PageType, tracked per page.
const (
	FlagBucketBeingPopulated uint16 = 1 << iota
	FlagBucketBeingSplit
	FlagNeedsSplitCleanup
	FlagPageHasDeadTuples
)

// special is the (prev_blk, next_blk, bucket, flags, page_id, real_blk)
// footer for bucket/overflow/bitmap pages. It is encoded into the same
// fixed special-area size the metapage uses, so every hash page shares
// one PageFamily.SpecialAreaSize.
type special struct {
	PrevBlk  uint32
	NextBlk  uint32
	Bucket   uint32
	Flags    uint16
	PageID   PageType
	RealBlk  uint32
}

const specialEncodedSize = 4 + 4 + 4 + 2 + 1 + 4

func readSpecial(p *page.Page) special {
	buf := p.Special()
	return special{
		PrevBlk: binary.LittleEndian.Uint32(buf[0:4]),
		NextBlk: binary.LittleEndian.Uint32(buf[4:8]),
		Bucket:  binary.LittleEndian.Uint32(buf[8:12]),
		Flags:   binary.LittleEndian.Uint16(buf[12:14]),
		PageID:  PageType(buf[14]),
		RealBlk: binary.LittleEndian.Uint32(buf[15:19]),
	}
}

func writeSpecial(p *page.Page, s special) {
	buf := p.Special()
	binary.LittleEndian.PutUint32(buf[0:4], s.PrevBlk)
	binary.LittleEndian.PutUint32(buf[4:8], s.NextBlk)
	binary.LittleEndian.PutUint32(buf[8:12], s.Bucket)
	binary.LittleEndian.PutUint16(buf[12:14], s.Flags)
	buf[14] = byte(s.PageID)
	binary.LittleEndian.PutUint32(buf[15:19], s.RealBlk)
}

func (s special) hasFlag(f uint16) bool { return s.Flags&f != 0 }

func (s *special) setFlag(f uint16, v bool) {
	if v {
		s.Flags |= f
	} else {
		s.Flags &^= f
	}
}

var _ = specialEncodedSize
