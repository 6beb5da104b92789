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

package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
)

const testSpecial = 8

type testFamily struct{}

func (testFamily) PageInit(p *page.Page) { p.Init(testSpecial) }
func (testFamily) SpecialAreaSize() int  { return testSpecial }

// memFile is a minimal oram.File backed by a map, standing in for the
// oblivious file adapter in these buffer-manager-only tests.
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

func newTestRelation(nblocks uint32) (*VRelation, *memFile) {
	f := newMemFile()
	rel := Init(oram.NewPassthrough(), f, testFamily{}, 1, nblocks, nil)
	return rel, f
}

func TestReadBufferOutOfBounds(t *testing.T) {
	rel, _ := newTestRelation(2)
	_, err := rel.ReadBuffer(5)
	require.Error(t, err)
}

func TestReadBufferDummyInitializesPage(t *testing.T) {
	rel, _ := newTestRelation(1)
	b, err := rel.ReadBuffer(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), b.BlockNumber)
	require.Equal(t, testSpecial, b.Page.SpecialSize())
}

func TestReadBufferResidentHitAvoidsReread(t *testing.T) {
	rel, f := newTestRelation(1)
	b1, err := rel.ReadBuffer(0)
	require.NoError(t, err)
	_, err = b1.Page.AddItem([]byte("x"), 0, page.AddItemOpts{})
	require.NoError(t, err)

	b2, err := rel.ReadBuffer(0)
	require.NoError(t, err)
	require.Same(t, b1, b2)
	require.Empty(t, f.blocks) // never flushed, so the backing file saw nothing
}

func TestPNewExtendsRelation(t *testing.T) {
	rel, _ := newTestRelation(0)
	require.Equal(t, uint32(0), rel.NumberOfBlocks())

	b, err := rel.ReadBuffer(PNew)
	require.NoError(t, err)
	require.Equal(t, uint32(0), b.BlockNumber)
	require.Equal(t, uint32(1), rel.NumberOfBlocks())

	b2, err := rel.ReadBuffer(PNew)
	require.NoError(t, err)
	require.Equal(t, uint32(1), b2.BlockNumber)
	require.Equal(t, uint32(2), rel.NumberOfBlocks())
}

func TestMarkBufferDirtyWritesThroughOram(t *testing.T) {
	rel, f := newTestRelation(1)
	b, err := rel.ReadBuffer(0)
	require.NoError(t, err)
	_, err = b.Page.AddItem([]byte("payload"), 0, page.AddItemOpts{})
	require.NoError(t, err)

	require.NoError(t, rel.MarkBufferDirty(b))
	require.Contains(t, f.blocks, uint32(0))
	require.False(t, b.Dirty)
}

func TestMarkBufferDirtyAndReleaseDropsResident(t *testing.T) {
	rel, _ := newTestRelation(1)
	b, err := rel.ReadBuffer(0)
	require.NoError(t, err)

	require.NoError(t, rel.MarkBufferDirtyAndRelease(b))

	b2, err := rel.ReadBuffer(0)
	require.NoError(t, err)
	require.NotSame(t, b, b2) // reread from the (now flushed) backing store
}

func TestFreeSpaceBlockEmptyRelationRequestsExtend(t *testing.T) {
	rel, _ := newTestRelation(0)
	require.Equal(t, PNew, rel.FreeSpaceBlock())
}

func TestFreeSpaceBlockTracksCurrentBlock(t *testing.T) {
	rel, _ := newTestRelation(1)
	require.Equal(t, uint32(0), rel.FreeSpaceBlock())
	rel.UpdateFSM()
	require.Equal(t, uint32(0), rel.FreeSpaceBlock())

	rel.BufferFull()
	require.Equal(t, PNew, rel.FreeSpaceBlock())
}

func TestCloseFlushesDirtyResidentPages(t *testing.T) {
	rel, f := newTestRelation(1)
	b, err := rel.ReadBuffer(0)
	require.NoError(t, err)
	b.Dirty = true

	require.NoError(t, rel.Close())
	require.Contains(t, f.blocks, uint32(0))
}

// prfAwareFile is a memFile that also records the (level, counter) it
// was last handed and hands back a token derived from them, standing
// in for internal/ofile.Adapter's PRF labeling without pulling in the
// codec/crypto stack.
type prfAwareFile struct {
	memFile
	level, counter uint32
	calls          int
}

func (f *prfAwareFile) SetPRFContext(level, counter uint32) {
	f.level, f.counter = level, counter
	f.calls++
}

func (f *prfAwareFile) LastPRFToken() [16]byte {
	var tok [16]byte
	tok[0] = byte(f.level)
	tok[1] = byte(f.counter)
	return tok
}

// TestReadAndWriteLabelEveryNonResidentAccess checks that the virtual
// relation pushes its protocol counter into a PRF-aware file ahead of
// every access that actually reaches the backing store, and surfaces
// the token it computed back as the relation's current token
// (spec.md §3/§4.2).
func TestReadAndWriteLabelEveryNonResidentAccess(t *testing.T) {
	f := &prfAwareFile{memFile: *newMemFile()}
	rel := Init(oram.NewPassthrough(), f, testFamily{}, 1, 1, nil)

	b, err := rel.ReadBuffer(0)
	require.NoError(t, err)
	require.Equal(t, 1, f.calls)
	require.Equal(t, uint32(1), rel.RCounter)
	require.Equal(t, f.LastPRFToken(), rel.Token)

	// A resident hit never touches the file, so it must not relabel.
	_, err = rel.ReadBuffer(0)
	require.NoError(t, err)
	require.Equal(t, 1, f.calls)

	_, err = b.Page.AddItem([]byte("x"), 0, page.AddItemOpts{})
	require.NoError(t, err)
	require.NoError(t, rel.MarkBufferDirty(b))
	require.Equal(t, 2, f.calls)
	require.Equal(t, uint32(2), rel.RCounter)
	require.Equal(t, f.LastPRFToken(), rel.Token)
}
