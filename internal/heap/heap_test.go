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

package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/soe/internal/buffer"
	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
)

type memFile struct {
	blocks map[uint32]oram.PLBlock
}

func newMemFile() *memFile { return &memFile{blocks: make(map[uint32]oram.PLBlock)} }

func (f *memFile) Read(blockNo uint32) (oram.PLBlock, error) {
	b, ok := f.blocks[blockNo]
	if !ok {
		return oram.PLBlock{RealBlockNumber: oram.DummyBlock}, nil
	}
	return b, nil
}

func (f *memFile) Write(block oram.PLBlock, blockNo uint32) error {
	f.blocks[blockNo] = block
	return nil
}

func newTestRelation() *buffer.VRelation {
	return buffer.Init(oram.NewPassthrough(), newMemFile(), Family{TableOid: 7}, 7, 0, nil)
}

func TestInsertAndGetTupleRoundTrip(t *testing.T) {
	rel := newTestRelation()

	tup, err := Insert(rel, 7, []byte("row one"))
	require.NoError(t, err)
	require.Equal(t, page.FirstOffsetNumber, tup.Self.OffsetNumber)

	got, err := GetTuple(rel, tup.Self)
	require.NoError(t, err)
	require.Equal(t, "row one", string(got.Data))
}

func TestInsertSpillsToNewBlockWhenFull(t *testing.T) {
	rel := newTestRelation()

	payload := make([]byte, 100)
	var last page.TID
	for i := 0; i < 200; i++ {
		tup, err := Insert(rel, 7, payload)
		require.NoError(t, err)
		last = tup.Self
	}
	require.Greater(t, rel.NumberOfBlocks(), uint32(1))

	got, err := GetTuple(rel, last)
	require.NoError(t, err)
	require.Equal(t, payload, got.Data)
}

func TestInsertRejectsOversizedTuple(t *testing.T) {
	rel := newTestRelation()
	_, err := Insert(rel, 7, make([]byte, MaxTupleSize+1))
	require.Error(t, err)
}

func TestGetTupleRejectsWrongOffset(t *testing.T) {
	rel := newTestRelation()
	tup, err := Insert(rel, 7, []byte("x"))
	require.NoError(t, err)

	bad := tup.Self
	bad.OffsetNumber += 50
	_, err = GetTuple(rel, bad)
	require.Error(t, err)
}

func TestHeapTuplesPerPageCap(t *testing.T) {
	rel := newTestRelation()
	for i := 0; i < page.MaxHeapTuplesPerPage; i++ {
		_, err := Insert(rel, 7, []byte{byte(i)})
		require.NoError(t, err)
	}
	// Insert only spills to a fresh block on a byte-space shortfall; the
	// per-page tuple-count cap is enforced deeper, inside AddItem, and
	// surfaces as an error rather than a transparent spill.
	_, err := Insert(rel, 7, []byte{0xff})
	require.Error(t, err)
}
