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

// Package page implements the slotted page format every engine builds
// on: a grow-down line-pointer array, a grow-up tuple heap, and a
// fixed-size special area at the tail interpreted by the page's owning
// engine.
package page

import (
	"encoding/binary"

	"github.com/erigontech/soe/internal/soeerr"
)

// BLCKSZ is the conventional fixed page size.
const BLCKSZ = 8192

// HeaderSize is the size of the page header described in spec.md §6:
// lsn(8, reserved/unused here), checksum(2), flags(2), lower(2),
// upper(2), special(2), pagesize_version(2).
const HeaderSize = 24

// InvalidOffsetNumber signals "no slot chosen" / "page too full".
const InvalidOffsetNumber uint16 = 0

// FirstOffsetNumber is the first valid 1-based offset into the line
// pointer array.
const FirstOffsetNumber uint16 = 1

// Line pointer flags.
type ItemFlags uint8

const (
	LPUnused ItemFlags = iota
	LPNormal
	LPRedirect
	LPDead
)

// ItemID is the (offset, flags, length) triple addressed by a 1-based
// OffsetNumber; it occupies itemIDSize (8) bytes on the page.
type ItemID struct {
	Offset uint32
	Flags  ItemFlags
	Length uint32
}

const itemIDSize = 8 // 2x uint32-ish packed fields, see encode/decode below.

func encodeItemID(id ItemID) [itemIDSize]byte {
	var b [itemIDSize]byte
	// offset: 15 bits, flags: 2 bits, length: 15 bits — packed into two
	// uint32s on the wire for simplicity and debuggability.
	binary.LittleEndian.PutUint32(b[0:4], (id.Offset&0x7fff)|(uint32(id.Flags)<<15))
	binary.LittleEndian.PutUint32(b[4:8], id.Length&0x7fff)
	return b
}

func decodeItemID(b []byte) ItemID {
	w0 := binary.LittleEndian.Uint32(b[0:4])
	w1 := binary.LittleEndian.Uint32(b[4:8])
	return ItemID{
		Offset: w0 & 0x7fff,
		Flags:  ItemFlags((w0 >> 15) & 0x3),
		Length: w1 & 0x7fff,
	}
}

// Header is the fixed 24-byte page header.
type Header struct {
	LSN             uint64
	Checksum        uint16
	Flags           uint16
	Lower           uint16
	Upper           uint16
	Special         uint16
	PageSizeVersion uint16
}

func readHeader(buf []byte) Header {
	return Header{
		LSN:             binary.LittleEndian.Uint64(buf[0:8]),
		Checksum:        binary.LittleEndian.Uint16(buf[8:10]),
		Flags:           binary.LittleEndian.Uint16(buf[10:12]),
		Lower:           binary.LittleEndian.Uint16(buf[12:14]),
		Upper:           binary.LittleEndian.Uint16(buf[14:16]),
		Special:         binary.LittleEndian.Uint16(buf[16:18]),
		PageSizeVersion: binary.LittleEndian.Uint16(buf[18:20]),
	}
}

func writeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint64(buf[0:8], h.LSN)
	binary.LittleEndian.PutUint16(buf[8:10], h.Checksum)
	binary.LittleEndian.PutUint16(buf[10:12], h.Flags)
	binary.LittleEndian.PutUint16(buf[12:14], h.Lower)
	binary.LittleEndian.PutUint16(buf[14:16], h.Upper)
	binary.LittleEndian.PutUint16(buf[16:18], h.Special)
	binary.LittleEndian.PutUint16(buf[18:20], h.PageSizeVersion)
}

// Page is a BLCKSZ-byte plaintext page, viewed through the slotted
// layout: header, grow-down line pointers, grow-up tuple heap, and a
// fixed special area at the tail.
type Page struct {
	Bytes []byte // always len(Bytes) == BLCKSZ
}

// New allocates a zero-filled page of BLCKSZ bytes.
func New() *Page {
	return &Page{Bytes: make([]byte, BLCKSZ)}
}

// Wrap views an existing BLCKSZ-byte buffer as a Page without copying.
func Wrap(buf []byte) (*Page, error) {
	if len(buf) != BLCKSZ {
		return nil, soeerr.Newf(soeerr.Invalid, "page: buffer length %d != BLCKSZ %d", len(buf), BLCKSZ)
	}
	return &Page{Bytes: buf}, nil
}

func (p *Page) header() Header        { return readHeader(p.Bytes) }
func (p *Page) setHeader(h Header)    { writeHeader(p.Bytes, h) }

// Init zero-fills the page and sets up an empty slotted layout with a
// special area of the given size at the tail.
func (p *Page) Init(specialSize int) {
	for i := range p.Bytes {
		p.Bytes[i] = 0
	}
	special := BLCKSZ - specialSize
	h := Header{
		Lower:           HeaderSize,
		Upper:           uint16(special),
		Special:         uint16(special),
		PageSizeVersion: uint16(BLCKSZ),
	}
	p.setHeader(h)
}
