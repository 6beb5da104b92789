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

package ost

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/soeerr"
)

// LevelOram is one level's ORAM instance plus the oblivious-file
// adapter it reads/writes through. offset is this level's cumulative
// base: the adapter sees absolute block numbers as offset+local, so
// every level's ORAM views a contiguous logical page range (spec.md
// §4.3's OST adapter note).
type LevelOram struct {
	State  oram.State
	File   oram.File
	Offset uint32
}

// Forest is the static ordered search tree handle.
type Forest struct {
	RootFile oram.File // level 0, accessed directly, no ORAM
	Levels   []LevelOram
	Fanouts  []uint32
	L        int
	loaded   bool

	log *zap.Logger
}

// New builds a forest over L levels with the given per-level fanouts.
// len(fanouts) must equal L.
func New(rootFile oram.File, levels []LevelOram, fanouts []uint32, log *zap.Logger) *Forest {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forest{RootFile: rootFile, Levels: levels, Fanouts: fanouts, L: len(fanouts), log: log.Named("ost")}
}

func downlink(child uint32, key []byte) page.IndexTuple {
	it := page.IndexTuple{Self: page.TID{BlockNumber: child}, Payload: append([]byte(nil), key...)}
	it.Info = uint16(page.IndexTupleHeaderSize+len(it.Payload)) & 0x1fff
	return it
}

func leafItem(heapTID page.TID, key []byte) page.IndexTuple {
	it := page.IndexTuple{Self: heapTID, Payload: append([]byte(nil), key...)}
	it.Info = uint16(page.IndexTupleHeaderSize+len(it.Payload)) & 0x1fff
	return it
}

// LoadRoot installs the single level-0 page directly.
func (f *Forest) LoadRoot(p *page.Page) error {
	if f.loaded {
		return soeerr.New(soeerr.Unsupported, "ost: no inserts accepted after load")
	}
	block := oram.PLBlock{RealBlockNumber: 0, Size: page.BLCKSZ, Bytes: p.Bytes}
	return f.RootFile.Write(block, 0)
}

// LoadBlock installs a pre-built block at (level, offset), level >= 1.
func (f *Forest) LoadBlock(level int, offset uint32, p *page.Page) error {
	if level < 1 || level > f.L {
		return soeerr.Newf(soeerr.Invalid, "ost: level %d out of range [1,%d]", level, f.L)
	}
	if f.loaded {
		return soeerr.New(soeerr.Unsupported, "ost: no inserts accepted after load")
	}
	lv := f.Levels[level-1]
	block := oram.PLBlock{RealBlockNumber: lv.Offset + offset, Size: page.BLCKSZ, Bytes: p.Bytes}
	return lv.State.Write(lv.File, lv.Offset+offset, block)
}

// Finalize marks the forest closed to further loads.
func (f *Forest) Finalize() { f.loaded = true }

func (f *Forest) readRoot() (*page.Page, error) {
	blk, err := f.RootFile.Read(0)
	if err != nil {
		return nil, soeerr.Wrap(soeerr.HostError, err, "ost: read root")
	}
	return page.Wrap(blk.Bytes)
}

func (f *Forest) readLevel(level int, blkno uint32) (*page.Page, error) {
	lv := f.Levels[level-1]
	blk, err := lv.State.Read(lv.File, lv.Offset+blkno)
	if err != nil {
		return nil, err
	}
	return page.Wrap(blk.Bytes)
}

// ReadDummy issues a read against the given level (or the root file for
// level 0) whose outcome is discarded; it must be indistinguishable in
// the external trace from a real read.
func (f *Forest) ReadDummy(level int, blkno uint32) error {
	if level == 0 {
		_, err := f.RootFile.Read(0)
		return err
	}
	lv := f.Levels[level-1]
	_, err := lv.State.Read(lv.File, lv.Offset+blkno)
	return err
}

func binsrchOST(p *page.Page, searchKey []byte) (uint16, error) {
	max := p.MaxOffsetNumber()
	result := page.FirstOffsetNumber
	for n := page.FirstOffsetNumber; n <= max; n++ {
		raw, err := p.Item(n)
		if err != nil {
			continue
		}
		it := page.DecodeIndexTuple(raw)
		if bytes.Compare(it.Payload, searchKey) <= 0 {
			result = n
		} else {
			break
		}
	}
	return result, nil
}

// Search descends root → level 1 → … → level L, with optional
// dummy-read padding so every external trace has the same depth
// (testable property 6, spec.md §8). It returns the matching items
// from the leaf it lands on, the level that leaf lives at, and the
// leaf's right-sibling block (so a caller can continue stepping).
func (f *Forest) Search(key []byte, doDummy bool) ([]page.IndexTuple, int, uint32, error) {
	root, err := f.readRoot()
	if err != nil {
		return nil, 0, 0, err
	}
	sp := readSpecial(root)

	if f.L == 0 || sp.IsLeaf {
		items, err := f.scanLeaf(root, key)
		return items, 0, sp.NextBlk, err
	}

	off, err := binsrchOST(root, key)
	if err != nil {
		return nil, 0, 0, err
	}
	raw, err := root.Item(off)
	if err != nil {
		return nil, 0, 0, err
	}
	child := page.DecodeIndexTuple(raw).Self.BlockNumber

	for level := 1; level <= f.L; level++ {
		p, err := f.readLevel(level, child)
		if err != nil {
			return nil, 0, 0, err
		}
		psp := readSpecial(p)
		if psp.IsLeaf || level == f.L {
			items, err := f.scanLeaf(p, key)
			if err != nil {
				return nil, 0, 0, err
			}
			if doDummy {
				for pad := level + 1; pad <= f.L; pad++ {
					if err := f.ReadDummy(pad, 0); err != nil {
						return nil, 0, 0, err
					}
				}
			}
			return items, level, psp.NextBlk, nil
		}
		off, err := binsrchOST(p, key)
		if err != nil {
			return nil, 0, 0, err
		}
		raw, err := p.Item(off)
		if err != nil {
			return nil, 0, 0, err
		}
		child = page.DecodeIndexTuple(raw).Self.BlockNumber
	}
	return nil, 0, 0, soeerr.New(soeerr.Invalid, "ost: descent exhausted levels without reaching a leaf")
}

func (f *Forest) scanLeaf(p *page.Page, key []byte) ([]page.IndexTuple, error) {
	max := p.MaxOffsetNumber()
	var out []page.IndexTuple
	for n := page.FirstOffsetNumber; n <= max; n++ {
		raw, err := p.Item(n)
		if err != nil {
			continue
		}
		it := page.DecodeIndexTuple(raw)
		if bytes.Equal(it.Payload, key) {
			out = append(out, it)
		}
	}
	return out, nil
}
