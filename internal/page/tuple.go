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

import (
	"encoding/binary"

	"github.com/erigontech/soe/internal/soemath"
)

// TID identifies a heap tuple by (block number, 1-based offset).
type TID struct {
	BlockNumber uint32
	OffsetNumber uint16
}

// HeapTuple is (tid, length, tableOid, data).
type HeapTuple struct {
	Self    TID
	Length  int
	TableOid uint32
	Data    []byte
}

// t_info bit layout for an IndexTuple: size occupies the low 13 bits,
// bit 13 is the has-nulls flag, bit 14 is the has-varwidth flag, bit 15
// is AM-reserved (used by the hash index for MOVED_BY_SPLIT).
const (
	indexSizeMask     = 0x1fff
	indexHasNullMask  = 1 << 13
	indexVarWidthMask = 1 << 14
	indexAMReservedMask = 1 << 15
)

// IndexTupleHeaderSize is the size of (t_tid, t_info).
const IndexTupleHeaderSize = 6 + 2 // TID packed as 4+2 bytes, t_info uint16.

// IndexTuple is (t_tid, t_info, payload).
type IndexTuple struct {
	Self     TID
	Info     uint16
	Payload  []byte
}

// HasNulls reports the has-nulls flag.
func (it IndexTuple) HasNulls() bool { return it.Info&indexHasNullMask != 0 }

// HasVarWidth reports the has-varwidth flag.
func (it IndexTuple) HasVarWidth() bool { return it.Info&indexVarWidthMask != 0 }

// MovedBySplit reports the AM-reserved bit, used by the hash index to
// mark tuples copied into the new bucket during a split.
func (it IndexTuple) MovedBySplit() bool { return it.Info&indexAMReservedMask != 0 }

// SetMovedBySplit sets or clears the AM-reserved bit.
func (it *IndexTuple) SetMovedBySplit(v bool) {
	if v {
		it.Info |= indexAMReservedMask
	} else {
		it.Info &^= indexAMReservedMask
	}
}

// Size returns the size bits of t_info (payload + header, aligned).
func (it IndexTuple) Size() int { return int(it.Info & indexSizeMask) }

// Encode serializes the index tuple to its on-page wire form.
func (it IndexTuple) Encode() []byte {
	buf := make([]byte, IndexTupleHeaderSize+len(it.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], it.Self.BlockNumber)
	binary.LittleEndian.PutUint16(buf[4:6], it.Self.OffsetNumber)
	binary.LittleEndian.PutUint16(buf[6:8], it.Info)
	copy(buf[8:], it.Payload)
	return buf
}

// DecodeIndexTuple parses an index tuple from its on-page wire form.
func DecodeIndexTuple(buf []byte) IndexTuple {
	return IndexTuple{
		Self: TID{
			BlockNumber:  binary.LittleEndian.Uint32(buf[0:4]),
			OffsetNumber: binary.LittleEndian.Uint16(buf[4:6]),
		},
		Info:    binary.LittleEndian.Uint16(buf[6:8]),
		Payload: buf[8:],
	}
}

// AttrDesc describes one key attribute of a tuple descriptor: its
// alignment class and whether it is fixed-width.
type AttrDesc struct {
	Align     soemath.AlignChar
	FixedLen  int // 0 for varlena
}

// FormIndexTuple builds an IndexTuple carrying a single key attribute's
// payload. This matches the prototype's fixed-width assumption: one key
// attribute, no multi-column indexes (spec Non-goals).
func FormIndexTuple(attr AttrDesc, value []byte, isNull bool) IndexTuple {
	dataSize := len(value)
	if attr.FixedLen > 0 {
		dataSize = attr.FixedLen
	}
	aligned := soemath.AlignAttr(dataSize, attr.Align)
	payload := make([]byte, aligned)
	copy(payload, value)

	info := uint16(IndexTupleHeaderSize+aligned) & indexSizeMask
	if isNull {
		info |= indexHasNullMask
	}
	if attr.FixedLen == 0 {
		info |= indexVarWidthMask
	}
	return IndexTuple{Info: info, Payload: payload}
}

// GetAttr retrieves the key attribute payload from an index tuple,
// trimmed to its declared length for fixed-width attributes.
func GetAttr(it IndexTuple, attr AttrDesc) []byte {
	if attr.FixedLen > 0 && attr.FixedLen <= len(it.Payload) {
		return it.Payload[:attr.FixedLen]
	}
	return it.Payload
}
