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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/soe/internal/page"
)

func TestSpecialRoundTrip(t *testing.T) {
	p := page.New()
	p.Init(SpecialAreaSize)

	s := special{PrevBlk: 1, NextBlk: 2, Level: 3, Flags: FlagLeaf | FlagRoot, RealBlk: 9}
	s.Counters[0] = 42
	s.Counters[MaxTrackedOffsets-1] = 7
	writeSpecial(p, s)

	got := readSpecial(p)
	require.Equal(t, s, got)
}

func TestIsRightmost(t *testing.T) {
	require.True(t, special{NextBlk: InvalidBlock}.isRightmost())
	require.False(t, special{NextBlk: 5}.isRightmost())
}

func TestSpecialFlagHelpers(t *testing.T) {
	s := special{}
	require.False(t, s.hasFlag(FlagHalfDead))
	s.setFlag(FlagHalfDead, true)
	require.True(t, s.hasFlag(FlagHalfDead))
	s.setFlag(FlagHalfDead, false)
	require.False(t, s.hasFlag(FlagHalfDead))
}

func TestFamilyRealBlockRoundTrip(t *testing.T) {
	p := page.New()
	Family{}.PageInit(p)
	SetRealBlock(p, 55)
	require.Equal(t, uint32(55), RealBlockOf(p))
	require.True(t, readSpecial(p).hasFlag(FlagLeaf))
}
