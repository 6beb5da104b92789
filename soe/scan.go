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
	"github.com/erigontech/soe/internal/heap"
	"github.com/erigontech/soe/internal/nbtree"
	"github.com/erigontech/soe/internal/ost"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/soeerr"
)

// scanState holds whichever one engine's scan descriptor is currently
// open. Only one scan is ever live per session (spec.md §3's Lifecycles
// note).
type scanState struct {
	hashScan interface {
		Next() (page.IndexTuple, bool, error)
	}
	btreeScan *nbtree.Scan
	ostScan   *ost.Scan
}

// GetTuple returns one matching tuple at a time. The first call with a
// given key opens the scan; subsequent calls advance it. The key
// "HALT" terminates and frees the scan. Return code 0 means a tuple was
// copied out, 1 means end-of-scan (or HALT).
func (s *Session) GetTuple(opmode int, opoid uint32, key []byte) (page.HeapTuple, int, error) {
	if string(key) == Halt {
		s.scan = nil
		return page.HeapTuple{}, 1, nil
	}

	if s.scan == nil {
		if err := s.beginScan(opoid, key); err != nil {
			return page.HeapTuple{}, 0, err
		}
	}

	tid, found, err := s.advance()
	if err != nil {
		s.scan = nil
		return page.HeapTuple{}, 0, err
	}
	if !found {
		s.scan = nil
		return page.HeapTuple{}, 1, nil
	}

	tup, err := heap.GetTuple(s.heapRel, tid)
	if err != nil {
		s.scan = nil
		return page.HeapTuple{}, 0, err
	}
	if tup.Length > MaxTupleSize {
		s.scan = nil
		return page.HeapTuple{}, 0, soeerr.Newf(soeerr.TooLarge, "soe: stored tuple size %d exceeds MAX_TUPLE_SIZE %d", tup.Length, MaxTupleSize)
	}
	return tup, 0, nil
}

func (s *Session) beginScan(opoid uint32, key []byte) error {
	switch {
	case s.forest != nil:
		sc, err := s.forest.BeginScan(key, true)
		if err != nil {
			return err
		}
		s.scan = &scanState{ostScan: sc}
		return nil
	case s.handler == HandlerHash:
		s.scan = &scanState{hashScan: s.hash.BeginScan(key)}
		return nil
	case s.handler == HandlerBTree:
		sc, err := s.btree.BeginScan(int(opoid), key)
		if err != nil {
			return err
		}
		s.scan = &scanState{btreeScan: sc}
		return nil
	default:
		return soeerr.New(soeerr.Invalid, "soe: no index configured for this session")
	}
}

func (s *Session) advance() (page.TID, bool, error) {
	switch {
	case s.scan.ostScan != nil:
		it, found, err := s.scan.ostScan.Next()
		return it.Self, found, err
	case s.scan.hashScan != nil:
		it, found, err := s.scan.hashScan.Next()
		return it.Self, found, err
	case s.scan.btreeScan != nil:
		_, tid, found, err := s.scan.btreeScan.Next()
		return tid, found, err
	default:
		return page.TID{}, false, soeerr.New(soeerr.Invalid, "soe: scan descriptor has no active engine")
	}
}
