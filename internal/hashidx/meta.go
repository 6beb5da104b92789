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

import "encoding/binary"

// MaxSplitPoints bounds the spares array: one entry per splitpoint
// phase the bucket-doubling schedule can reach.
const MaxSplitPoints = 32

const metaMagic = 0x6861_7368 // "hash"
const metaVersion = 1

// Meta is the hash index metapage, block 0 of the relation.
type Meta struct {
	Magic      uint32
	Version    uint32
	NTuples    uint64
	FFactor    uint32
	MaxBucket  uint32
	HighMask   uint32
	LowMask    uint32
	OvflPoint  uint32
	FirstFree  uint32
	Spares     [MaxSplitPoints]uint32
}

// metaSpecialSize is generous enough to hold the metapage plus every
// bucket/overflow/bitmap special area variant; hash pages share one
// special-area size so the buffer manager's PageFamily stays uniform.
const metaSpecialSize = 4 + 4 + 8 + 4 + 4 + 4 + 4 + 4 + 4 + MaxSplitPoints*4 + 4 // +4 for RealBlock

func encodeMeta(m Meta) []byte {
	buf := make([]byte, metaSpecialSize)
	binary.LittleEndian.PutUint32(buf[0:4], m.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], m.Version)
	binary.LittleEndian.PutUint64(buf[8:16], m.NTuples)
	binary.LittleEndian.PutUint32(buf[16:20], m.FFactor)
	binary.LittleEndian.PutUint32(buf[20:24], m.MaxBucket)
	binary.LittleEndian.PutUint32(buf[24:28], m.HighMask)
	binary.LittleEndian.PutUint32(buf[28:32], m.LowMask)
	binary.LittleEndian.PutUint32(buf[32:36], m.OvflPoint)
	binary.LittleEndian.PutUint32(buf[36:40], m.FirstFree)
	off := 40
	for i := 0; i < MaxSplitPoints; i++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], m.Spares[i])
		off += 4
	}
	return buf
}

func decodeMeta(buf []byte) Meta {
	var m Meta
	m.Magic = binary.LittleEndian.Uint32(buf[0:4])
	m.Version = binary.LittleEndian.Uint32(buf[4:8])
	m.NTuples = binary.LittleEndian.Uint64(buf[8:16])
	m.FFactor = binary.LittleEndian.Uint32(buf[16:20])
	m.MaxBucket = binary.LittleEndian.Uint32(buf[20:24])
	m.HighMask = binary.LittleEndian.Uint32(buf[24:28])
	m.LowMask = binary.LittleEndian.Uint32(buf[28:32])
	m.OvflPoint = binary.LittleEndian.Uint32(buf[32:36])
	m.FirstFree = binary.LittleEndian.Uint32(buf[36:40])
	off := 40
	for i := 0; i < MaxSplitPoints; i++ {
		m.Spares[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	return m
}

// NewMeta builds the initial metapage for an index with initBuckets
// primary buckets and the given fill factor.
func NewMeta(initBuckets uint32, ffactor uint32) Meta {
	if initBuckets == 0 {
		initBuckets = 1
	}
	lowMask := initBuckets - 1
	highMask := lowMask<<1 | 1
	m := Meta{
		Magic:     metaMagic,
		Version:   metaVersion,
		FFactor:   ffactor,
		MaxBucket: initBuckets - 1,
		LowMask:   lowMask,
		HighMask:  highMask,
		OvflPoint: spareindex(initBuckets),
		FirstFree: 0,
	}
	return m
}

// spareindex returns the splitpoint phase that contains bucket count n
// (i.e. the phase whose doubling boundary n falls under). Simplified
// relative to the original's four-sub-phases-per-doubling schedule: one
// phase per power-of-two bucket-count doubling, which preserves the
// property bucket_to_blkno depends on (a phase boundary only changes
// when maxbucket crosses a power of two) without needing the finer
// sub-phase bookkeeping a production bufferpool-sized table wants.
func spareindex(n uint32) uint32 {
	if n <= 1 {
		return 0
	}
	var p uint32
	for (uint32(1) << p) < n {
		p++
	}
	return p
}

// HashToBucket implements the stable bucket-assignment invariant: the
// mapping must agree before and after a split for tuples that remain
// in the old bucket.
func HashToBucket(h uint32, maxBucket, highMask, lowMask uint32) uint32 {
	b := h & highMask
	if b > maxBucket {
		b = h & lowMask
	}
	return b
}

// BucketToBlkno translates a logical bucket number to its absolute
// block number, accounting for overflow pages interspersed by earlier
// splitpoint phases.
func BucketToBlkno(m Meta, bucket uint32) uint32 {
	idx := spareindex(bucket + 1)
	var spare uint32
	if idx > 0 {
		spare = m.Spares[idx-1]
	}
	return 1 + bucket + spare
}
