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

package soemath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignOn(t *testing.T) {
	require.Equal(t, 0, AlignOn(0, 8))
	require.Equal(t, 8, AlignOn(1, 8))
	require.Equal(t, 8, AlignOn(8, 8))
	require.Equal(t, 16, AlignOn(9, 8))
}

func TestMaxAlignOn(t *testing.T) {
	require.Equal(t, 0, MaxAlignOn(0))
	require.Equal(t, MaxAlign, MaxAlignOn(1))
	require.Equal(t, MaxAlign, MaxAlignOn(MaxAlign))
}

func TestAttrAlignment(t *testing.T) {
	require.Equal(t, 1, AttrAlignment(AlignChar1))
	require.Equal(t, 2, AttrAlignment(AlignShort))
	require.Equal(t, 4, AttrAlignment(AlignInt))
	require.Equal(t, MaxAlign, AttrAlignment(AlignDouble))
	require.Equal(t, MaxAlign, AttrAlignment(AlignChar('z')))
}

func TestClampUint32(t *testing.T) {
	require.Equal(t, uint32(5), ClampUint32(5, 0, 10))
	require.Equal(t, uint32(0), ClampUint32(0, 0, 10))
	require.Equal(t, uint32(10), ClampUint32(20, 0, 10))
}

func TestLog2Uint32(t *testing.T) {
	require.Equal(t, uint32(0), Log2Uint32(1))
	require.Equal(t, uint32(1), Log2Uint32(2))
	require.Equal(t, uint32(2), Log2Uint32(4))
	require.Equal(t, uint32(2), Log2Uint32(7))
	require.Equal(t, uint32(3), Log2Uint32(8))
}
