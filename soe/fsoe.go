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

package soe

import (
	"fmt"

	"github.com/erigontech/soe/internal/ofile"
	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/ost"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/soeerr"
)

// InitFSOE creates the heap relation and an OST forest with L levels
// sized by fanouts, ready to accept bulk-loaded blocks via
// AddHeapBlock/AddIndexBlock.
func (s *Session) InitFSOE(tableName, indexName string, tableNblocks uint32, fanouts []uint32, tableOid, indexOid uint32, attr page.AttrDesc) error {
	s.TableOid = tableOid
	s.IndexOid = indexOid
	s.Attr = attr

	if err := s.initHeap(tableName, tableNblocks, tableNblocks); err != nil {
		return err
	}

	rootAdapter := &ofile.Adapter{
		Filename: indexName,
		Codec:    s.Codec,
		PRF:      s.PRF,
		Host:     s.Host,
		Dummy:    ost.Dummy,
		RealOf:   ost.RealBlockOf,
		SetReal:  ost.SetRealBlock,
	}
	if err := rootAdapter.Init(1); err != nil {
		return err
	}

	levels := make([]ost.LevelOram, len(fanouts))
	for i, fanout := range fanouts {
		filename := fmt.Sprintf("%s.L%d", indexName, i+1)
		adapter := &ofile.Adapter{
			Filename: filename,
			Codec:    s.Codec,
			PRF:      s.PRF,
			Host:     s.Host,
			Dummy:    ost.Dummy,
			RealOf:   ost.RealBlockOf,
			SetReal:  ost.SetRealBlock,
			Level:    uint32(i + 1),
		}
		if err := adapter.Init(fanout); err != nil {
			return err
		}
		// Each level gets its own oblivious file, so it already sees a
		// 0-based logical range of its own fanout pages; Offset only
		// matters for an adapter sharing one backing file across
		// levels, which this wiring does not do.
		levels[i] = ost.LevelOram{State: oram.NewPassthrough(), File: adapter, Offset: 0}
	}

	s.forest = ost.New(rootAdapter, levels, fanouts, s.Log)
	return nil
}

// AddHeapBlock bulk-loads a pre-built heap page at blkno.
func (s *Session) AddHeapBlock(blockBytes []byte, blkno uint32) error {
	p, err := page.Wrap(blockBytes)
	if err != nil {
		return err
	}
	block := oram.PLBlock{RealBlockNumber: blkno, Size: page.BLCKSZ, Bytes: p.Bytes}
	return s.heapAdapter.Write(block, blkno)
}

// AddIndexBlock bulk-loads a pre-built OST page at (level, offset).
// Level 0 is the root; level >= 1 addresses that level's ORAM.
func (s *Session) AddIndexBlock(blockBytes []byte, offset uint32, level int) error {
	if s.forest == nil {
		return soeerr.New(soeerr.Invalid, "soe: AddIndexBlock requires an FSOE session")
	}
	p, err := page.Wrap(blockBytes)
	if err != nil {
		return err
	}
	if level == 0 {
		return s.forest.LoadRoot(p)
	}
	return s.forest.LoadBlock(level, offset, p)
}
