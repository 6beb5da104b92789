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

package nbtree

import "encoding/binary"

const metaMagic = 0x6274_7265 // "btre"
const metaVersion = 1

// MetaBlock is the fixed block number of the B-tree metapage.
const MetaBlock uint32 = 0

// RootBlock is the fixed block number the initial root (also the first
// leaf) is allocated at.
const RootBlock uint32 = 1

// Meta is the dynamic B-tree's metapage.
type Meta struct {
	Magic             uint32
	Version           uint32
	Root              uint32
	Level             uint32
	FastRoot          uint32
	FastLevel         uint32
	LastCleanupTuples uint64
}

func encodeMeta(m Meta) []byte {
	buf := make([]byte, SpecialAreaSize)
	binary.LittleEndian.PutUint32(buf[0:4], m.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], m.Version)
	binary.LittleEndian.PutUint32(buf[8:12], m.Root)
	binary.LittleEndian.PutUint32(buf[12:16], m.Level)
	binary.LittleEndian.PutUint32(buf[16:20], m.FastRoot)
	binary.LittleEndian.PutUint32(buf[20:24], m.FastLevel)
	binary.LittleEndian.PutUint64(buf[24:32], m.LastCleanupTuples)
	return buf
}

func decodeMeta(buf []byte) Meta {
	return Meta{
		Magic:             binary.LittleEndian.Uint32(buf[0:4]),
		Version:           binary.LittleEndian.Uint32(buf[4:8]),
		Root:              binary.LittleEndian.Uint32(buf[8:12]),
		Level:             binary.LittleEndian.Uint32(buf[12:16]),
		FastRoot:          binary.LittleEndian.Uint32(buf[16:20]),
		FastLevel:         binary.LittleEndian.Uint32(buf[20:24]),
		LastCleanupTuples: binary.LittleEndian.Uint64(buf[24:32]),
	}
}

func newMeta() Meta {
	return Meta{Magic: metaMagic, Version: metaVersion, Root: RootBlock, Level: 0, FastRoot: RootBlock, FastLevel: 0}
}
