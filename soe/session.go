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

// Package soe is the front door: session lifecycle, request dispatch,
// and tuple marshaling across the trust boundary. It is the only
// package a host embedding this enclave talks to directly.
package soe

import (
	"go.uber.org/zap"

	"github.com/erigontech/soe/internal/buffer"
	"github.com/erigontech/soe/internal/codec"
	"github.com/erigontech/soe/internal/hashidx"
	"github.com/erigontech/soe/internal/nbtree"
	"github.com/erigontech/soe/internal/ofile"
	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/ost"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/prf"
	"github.com/erigontech/soe/internal/soeerr"
)

// Index handler OIDs (spec.md §6).
const (
	HandlerBTree uint32 = 330
	HandlerHash  uint32 = 331
)

// MaxTupleSize is the hard ceiling validated against at the trust
// boundary for any tuple data copied in or out (spec.md §4.10).
const MaxTupleSize = page.BLCKSZ / 4

// Halt is the sentinel key that terminates a scan.
const Halt = "HALT"

// Session is the trusted core's per-embedding handle: one heap
// relation and either one dynamic index (hash or B-tree) or one OST
// forest, plus the process-wide crypto material.
type Session struct {
	Codec *codec.Codec
	PRF   prf.Func
	Host  ofile.HostFile
	Log   *zap.Logger

	TableOid uint32
	IndexOid uint32
	Attr     page.AttrDesc

	heapRel     *buffer.VRelation
	heapAdapter *ofile.Adapter

	handler   uint32
	indexRel  *buffer.VRelation
	idxAdapter *ofile.Adapter
	hash      *hashidx.Index
	btree     *nbtree.Tree

	forest *ost.Forest

	scan *scanState
}

// New builds a session over the given host callback set and crypto
// material. The ORAM backing every relation is oram.Passthrough — the
// non-oblivious reference/test double — because this module ships no
// production ORAM library; swapping in a real one means constructing
// the relations with a different oram.State, the one seam this package
// exposes for that purpose.
func New(host ofile.HostFile, key, iv []byte, prfKey []byte, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c, err := codec.New(key, iv)
	if err != nil {
		return nil, err
	}
	return &Session{
		Codec: c,
		PRF:   prf.New(prfKey),
		Host:  host,
		Log:   log,
	}, nil
}

// InitSOE creates the heap and a dynamic index (hash or B-tree)
// relation, ready to accept inserts.
func (s *Session) InitSOE(tableName, indexName string, tableNblocks, indexNblocks uint32, tableOid, indexOid, handlerOid uint32, attr page.AttrDesc) error {
	s.TableOid = tableOid
	s.IndexOid = indexOid
	s.Attr = attr
	s.handler = handlerOid

	if err := s.initHeap(tableName, tableNblocks, 0); err != nil {
		return err
	}

	switch handlerOid {
	case HandlerHash:
		adapter, rel, err := s.newAdapterAndRel(indexName, indexNblocks, hashidx.Family{}, hashidx.Dummy, hashidx.RealBlockOf, hashidx.SetRealBlock)
		if err != nil {
			return err
		}
		s.idxAdapter, s.indexRel = adapter, rel
		s.hash = hashidx.New(rel, s.Log)
		return s.hash.Init(4, 10)
	case HandlerBTree:
		adapter, rel, err := s.newAdapterAndRel(indexName, indexNblocks, nbtree.Family{}, nbtree.Dummy, nbtree.RealBlockOf, nbtree.SetRealBlock)
		if err != nil {
			return err
		}
		s.idxAdapter, s.indexRel = adapter, rel
		s.btree = nbtree.New(rel, attr, s.Log)
		return s.btree.Init()
	default:
		return soeerr.Newf(soeerr.Invalid, "soe: unknown index handler oid %d", handlerOid)
	}
}

// initHeap host-initializes the heap's oblivious file and constructs
// the heap VRelation. vrelBlocks is the VRelation's starting
// lastFreeBlock, not the host's preallocated page count (tableNblocks
// is always used for that): the dynamic insert path (InitSOE) needs
// vrelBlocks == 0 so the first heap.Insert takes the PNew extend
// branch, while the bulk-load path (InitFSOE) already knows its full
// block count up front and must pass it here so ReadBuffer accepts any
// TID a pre-built OST leaf carries, not just block 0 (spec.md §4.10's
// AddHeapBlock bypasses the VRelation entirely, so nothing else would
// ever advance lastFreeBlock for it).
func (s *Session) initHeap(tableName string, tableNblocks, vrelBlocks uint32) error {
	adapter := &ofile.Adapter{
		Filename: tableName,
		Codec:    s.Codec,
		PRF:      s.PRF,
		Host:     s.Host,
		Dummy:    heapDummy(s.TableOid),
		RealOf:   heapRealOf,
		SetReal:  heapSetReal,
	}
	if err := adapter.Init(tableNblocks); err != nil {
		return err
	}
	s.heapAdapter = adapter
	s.heapRel = buffer.Init(oram.NewPassthrough(), adapter, heapFamily(s.TableOid), s.TableOid, vrelBlocks, s.Log)
	return nil
}

func (s *Session) newAdapterAndRel(filename string, nblocks uint32, family buffer.PageFamily, dummy ofile.DummyPageInit, realOf ofile.RealBlockOf, setReal ofile.SetRealBlock) (*ofile.Adapter, *buffer.VRelation, error) {
	adapter := &ofile.Adapter{
		Filename: filename,
		Codec:    s.Codec,
		PRF:      s.PRF,
		Host:     s.Host,
		Dummy:    dummy,
		RealOf:   realOf,
		SetReal:  setReal,
	}
	if err := adapter.Init(nblocks); err != nil {
		return nil, nil, err
	}
	rel := buffer.Init(oram.NewPassthrough(), adapter, family, s.IndexOid, 0, s.Log)
	return adapter, rel, nil
}

// CloseSoe terminates any open scan and releases both relations.
func (s *Session) CloseSoe() error {
	s.scan = nil
	if s.heapRel != nil {
		if err := s.heapRel.Close(); err != nil {
			return err
		}
	}
	if s.indexRel != nil {
		if err := s.indexRel.Close(); err != nil {
			return err
		}
	}
	return nil
}
