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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/soe/internal/buffer"
	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/soemath"
)

var testAttr = page.AttrDesc{Align: soemath.AlignChar1, FixedLen: 0}

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

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	rel := buffer.Init(oram.NewPassthrough(), newMemFile(), Family{}, 1, 0, nil)
	tr := New(rel, testAttr, nil)
	require.NoError(t, tr.Init())
	return tr
}

func scanAll(t *testing.T, tr *Tree, opoid int, key []byte) []page.TID {
	t.Helper()
	sc, err := tr.BeginScan(opoid, key)
	require.NoError(t, err)
	var out []page.TID
	for {
		_, tid, found, err := sc.Next()
		require.NoError(t, err)
		if !found {
			break
		}
		out = append(out, tid)
	}
	return out
}

func TestInsertThenEqualityScanFindsKey(t *testing.T) {
	tr := newTestTree(t)
	tid := page.TID{BlockNumber: 9, OffsetNumber: 1}
	require.NoError(t, tr.Insert(tid, []byte("hello")))

	got := scanAll(t, tr, OpEqual, []byte("hello"))
	require.Equal(t, []page.TID{tid}, got)

	miss := scanAll(t, tr, OpEqual, []byte("world"))
	require.Empty(t, miss)
}

func TestInsertDuplicateKeysBothReturned(t *testing.T) {
	tr := newTestTree(t)
	a := page.TID{BlockNumber: 1, OffsetNumber: 1}
	b := page.TID{BlockNumber: 2, OffsetNumber: 1}
	require.NoError(t, tr.Insert(a, []byte("dup")))
	require.NoError(t, tr.Insert(b, []byte("dup")))

	got := scanAll(t, tr, OpEqual, []byte("dup"))
	require.ElementsMatch(t, []page.TID{a, b}, got)
}

// TestRootSplitCreatesNewLevel drives enough distinct fixed-width keys
// into the tree that the root leaf overflows and newRoot fires,
// exercising spec.md's "B-tree root split" boundary behavior (S3).
func TestRootSplitCreatesNewLevel(t *testing.T) {
	tr := newTestTree(t)

	const n = 400
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%04d", i)
		keys = append(keys, k)
		tid := page.TID{BlockNumber: uint32(i) + 1, OffsetNumber: 1}
		require.NoError(t, tr.Insert(tid, []byte(k)))
	}

	meta, err := tr.getMeta()
	require.NoError(t, err)
	require.Greater(t, meta.Level, uint32(0), "expected at least one root split")

	for i, k := range keys {
		got := scanAll(t, tr, OpEqual, []byte(k))
		require.Len(t, got, 1, "key %q not found after split", k)
		require.Equal(t, uint32(i)+1, got[0].BlockNumber)
	}
}

// TestRangeScanWalksRightSiblings forces several leaf splits and checks
// that a >= scan starting mid-tree visits every later leaf exactly once
// and returns keys in ascending order (S4).
func TestRangeScanWalksRightSiblings(t *testing.T) {
	tr := newTestTree(t)

	const n = 600
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%04d", i)
		tid := page.TID{BlockNumber: uint32(i) + 1, OffsetNumber: 1}
		require.NoError(t, tr.Insert(tid, []byte(k)))
	}

	start := fmt.Sprintf("key-%04d", 150)
	got := scanAll(t, tr, OpGreaterEqual, []byte(start))

	require.Len(t, got, n-150)
	for i, tid := range got {
		require.Equal(t, uint32(150+i)+1, tid.BlockNumber)
	}
}

func TestBackwardScanOperatorsUnsupported(t *testing.T) {
	tr := newTestTree(t)
	_, err := tr.BeginScan(OpLess, []byte("x"))
	require.Error(t, err)
	_, err = tr.BeginScan(OpLessEqual, []byte("x"))
	require.Error(t, err)
}
