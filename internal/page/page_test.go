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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageInitLayout(t *testing.T) {
	p := New()
	p.Init(16)

	require.Equal(t, uint16(0), p.MaxOffsetNumber())
	require.Equal(t, 16, p.SpecialSize())
	require.Equal(t, BLCKSZ-HeaderSize-16, p.FreeSpace())
}

func TestWrapRejectsWrongSize(t *testing.T) {
	_, err := Wrap(make([]byte, BLCKSZ-1))
	require.Error(t, err)

	p, err := Wrap(make([]byte, BLCKSZ))
	require.NoError(t, err)
	require.Len(t, p.Bytes, BLCKSZ)
}

func TestAddItemAndRetrieve(t *testing.T) {
	p := New()
	p.Init(0)

	off, err := p.AddItem([]byte("hello"), 0, AddItemOpts{})
	require.NoError(t, err)
	require.Equal(t, FirstOffsetNumber, off)

	got, err := p.Item(off)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
	require.Equal(t, uint16(1), p.MaxOffsetNumber())
}

func TestAddItemAppendsInOrder(t *testing.T) {
	p := New()
	p.Init(0)

	off1, err := p.AddItem([]byte("a"), 0, AddItemOpts{})
	require.NoError(t, err)
	off2, err := p.AddItem([]byte("b"), 0, AddItemOpts{})
	require.NoError(t, err)

	require.Equal(t, off1+1, off2)

	got1, err := p.Item(off1)
	require.NoError(t, err)
	got2, err := p.Item(off2)
	require.NoError(t, err)
	require.Equal(t, "a", string(got1))
	require.Equal(t, "b", string(got2))
}

func TestAddItemAfterMultiDeleteAppends(t *testing.T) {
	p := New()
	p.Init(0)

	off1, err := p.AddItem([]byte("a"), 0, AddItemOpts{})
	require.NoError(t, err)
	_, err = p.AddItem([]byte("b"), 0, AddItemOpts{})
	require.NoError(t, err)

	p.MultiDelete([]uint16{off1})
	// MultiDelete repacks the line pointer array, so there is no unused
	// slot left to recycle; the next insert appends past the new max.
	maxBefore := p.MaxOffsetNumber()
	off3, err := p.AddItem([]byte("c"), 0, AddItemOpts{})
	require.NoError(t, err)
	require.Equal(t, maxBefore+1, off3)
}

func TestAddItemReturnsInvalidWhenFull(t *testing.T) {
	p := New()
	p.Init(0)

	big := make([]byte, BLCKSZ)
	off, err := p.AddItem(big, len(big), AddItemOpts{})
	require.NoError(t, err)
	require.Equal(t, InvalidOffsetNumber, off)
}

func TestAddItemHeapCapsTuplesPerPage(t *testing.T) {
	p := New()
	p.Init(0)

	for i := 0; i < MaxHeapTuplesPerPage; i++ {
		_, err := p.AddItem([]byte{byte(i)}, 0, AddItemOpts{IsHeap: true})
		require.NoError(t, err)
	}
	_, err := p.AddItem([]byte{0xff}, 0, AddItemOpts{IsHeap: true})
	require.Error(t, err)
}

func TestMultiDeletePreservesOrder(t *testing.T) {
	p := New()
	p.Init(0)

	offs := make([]uint16, 0, 5)
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		off, err := p.AddItem([]byte(v), 0, AddItemOpts{})
		require.NoError(t, err)
		offs = append(offs, off)
	}

	p.MultiDelete([]uint16{offs[1], offs[3]}) // drop "b" and "d"
	require.Equal(t, uint16(3), p.MaxOffsetNumber())

	var got []string
	for n := FirstOffsetNumber; n <= p.MaxOffsetNumber(); n++ {
		item, err := p.Item(n)
		require.NoError(t, err)
		got = append(got, string(item))
	}
	require.Equal(t, []string{"a", "c", "e"}, got)
}

func TestFreeSpaceForMultipleAccountsForLinePointers(t *testing.T) {
	p := New()
	p.Init(0)

	free := p.FreeSpace()
	est := p.FreeSpaceForMultiple(100, 3)
	require.Equal(t, free-100-3*8, est)
}

func TestSpecialRoundTrip(t *testing.T) {
	p := New()
	p.Init(8)
	copy(p.Special(), []byte{1, 2, 3, 4, 5, 6, 7, 8})

	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, p.Special())
}
