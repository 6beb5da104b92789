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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetaEncodeDecodeRoundTrip(t *testing.T) {
	m := NewMeta(4, 10)
	m.NTuples = 123
	m.Spares[0] = 9

	got := decodeMeta(encodeMeta(m))
	require.Equal(t, m, got)
}

func TestNewMetaInitialMasks(t *testing.T) {
	m := NewMeta(4, 10)
	require.Equal(t, uint32(3), m.MaxBucket)
	require.Equal(t, uint32(3), m.LowMask)
	require.Equal(t, uint32(7), m.HighMask)
}

func TestNewMetaZeroBucketsDefaultsToOne(t *testing.T) {
	m := NewMeta(0, 10)
	require.Equal(t, uint32(0), m.MaxBucket)
	require.Equal(t, uint32(0), m.LowMask)
	require.Equal(t, uint32(1), m.HighMask)
}

func TestSpareindexMonotonic(t *testing.T) {
	require.Equal(t, uint32(0), spareindex(0))
	require.Equal(t, uint32(0), spareindex(1))
	require.Equal(t, uint32(1), spareindex(2))
	require.Equal(t, uint32(2), spareindex(3))
	require.Equal(t, uint32(2), spareindex(4))
	require.Equal(t, uint32(3), spareindex(5))
}

func TestHashToBucketStableAcrossSplit(t *testing.T) {
	// Invariant: a key that stays in the old bucket after a split hashes
	// to the same bucket both before and after the doubling.
	before := HashToBucket(9, 3, 7, 3) // maxBucket=3 (4 buckets), mask 0b111/0b011
	after := HashToBucket(9, 7, 15, 7) // after one full doubling to 8 buckets
	if 9&7 != 9&3 {
		// would have moved to bucket 9&7; not the case here (9&7=1=9&3)
		t.Fatalf("test setup assumption violated")
	}
	require.Equal(t, before, after)
}

func TestBucketToBlknoAccountsForOverflowSpares(t *testing.T) {
	m := NewMeta(2, 10)
	// No splits yet: bucket i sits at block 1+i.
	require.Equal(t, uint32(1), BucketToBlkno(m, 0))
	require.Equal(t, uint32(2), BucketToBlkno(m, 1))

	// Three overflow pages recorded in phase 0 push bucket 1 (phase 1)
	// three blocks right; bucket 0 is unaffected.
	m.Spares[0] = 3
	require.Equal(t, uint32(1), BucketToBlkno(m, 0))
	require.Equal(t, uint32(5), BucketToBlkno(m, 1))
}
