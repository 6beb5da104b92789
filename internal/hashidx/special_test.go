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

	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
)

func TestSpecialRoundTrip(t *testing.T) {
	p := page.New()
	p.Init(SpecialAreaSize)

	s := special{PrevBlk: 1, NextBlk: 2, Bucket: 3, Flags: FlagBucketBeingSplit, PageID: PageBucket, RealBlk: 9}
	writeSpecial(p, s)

	got := readSpecial(p)
	require.Equal(t, s, got)
}

func TestSpecialFlagHelpers(t *testing.T) {
	s := special{}
	require.False(t, s.hasFlag(FlagPageHasDeadTuples))
	s.setFlag(FlagPageHasDeadTuples, true)
	require.True(t, s.hasFlag(FlagPageHasDeadTuples))
	s.setFlag(FlagBucketBeingSplit, true)
	require.True(t, s.hasFlag(FlagBucketBeingSplit))
	s.setFlag(FlagPageHasDeadTuples, false)
	require.False(t, s.hasFlag(FlagPageHasDeadTuples))
	require.True(t, s.hasFlag(FlagBucketBeingSplit))
}

func TestFamilyDummyHasDummyRealBlock(t *testing.T) {
	p := Dummy()
	require.Equal(t, PageOverflow, readSpecial(p).PageID)
	require.Equal(t, oram.DummyBlock, RealBlockOf(p))
}

func TestFamilyRealBlockRoundTrip(t *testing.T) {
	p := page.New()
	Family{}.PageInit(p)
	SetRealBlock(p, 77)
	require.Equal(t, uint32(77), RealBlockOf(p))
}
