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
	"bytes"

	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/soeerr"
)

// Operator OIDs recognized by a scan's comparison predicate.
const (
	OpLess        = 1058
	OpLessEqual   = 1059
	OpEqual       = 1054
	OpGreaterEqual = 1061
	OpGreater     = 1060
)

// checkKeys reports whether a row's key still satisfies the scan's
// predicate, and whether the scan should keep advancing (false once a
// monotonic predicate can no longer match anything further right).
func checkKeys(opoid int, probe, rowKey []byte) (match bool, keepGoing bool) {
	c := bytes.Compare(rowKey, probe)
	switch opoid {
	case OpEqual:
		return c == 0, c <= 0
	case OpGreaterEqual:
		return c >= 0, true
	case OpGreater:
		return c > 0, true
	case OpLessEqual, OpLess:
		// Backward/reverse scans are unsupported by this engine
		// (spec.md §7's Unsupported kind); ≤ and < require one.
		return false, false
	default:
		return false, false
	}
}

// Scan is a range/equality scan descriptor over one key and operator.
type Scan struct {
	t       *Tree
	opoid   int
	key     []byte
	items   []page.IndexTuple
	idx     int
	curLeaf uint32
	done    bool
	started bool
}

// BeginScan validates the operator and builds the scan opaque.
func (t *Tree) BeginScan(opoid int, key []byte) (*Scan, error) {
	switch opoid {
	case OpLess, OpLessEqual:
		return nil, soeerr.Newf(soeerr.Unsupported, "nbtree: operator %d requires a backward scan", opoid)
	case OpEqual, OpGreaterEqual, OpGreater:
	default:
		return nil, soeerr.Newf(soeerr.Invalid, "nbtree: unknown operator oid %d", opoid)
	}
	return &Scan{t: t, opoid: opoid, key: key}, nil
}

// First descends to the starting leaf and loads its first batch of
// qualifying items.
func (s *Scan) First() (page.IndexTuple, page.TID, bool, error) {
	leafBlk, _, err := s.t.search(s.key)
	if err != nil {
		return page.IndexTuple{}, page.TID{}, false, err
	}
	s.curLeaf = leafBlk
	s.started = true
	if err := s.loadPage(); err != nil {
		return page.IndexTuple{}, page.TID{}, false, err
	}
	return s.Next()
}

func (s *Scan) loadPage() error {
	for {
		if s.curLeaf == InvalidBlock {
			s.done = true
			return nil
		}
		buf, err := s.t.Rel.ReadBuffer(s.curLeaf)
		if err != nil {
			return err
		}
		p := s.t.Rel.BufferGetPage(buf)
		sp := readSpecial(p)
		_, start, max := dataOffsets(p, sp)

		s.items = s.items[:0]
		s.idx = 0
		keepScanning := true
		for n := start; n <= max && keepScanning; n++ {
			raw, err := p.Item(n)
			if err != nil {
				continue
			}
			it := page.DecodeIndexTuple(raw)
			match, keep := checkKeys(s.opoid, s.key, itemKey(it))
			if match {
				s.items = append(s.items, it)
			}
			keepScanning = keep
		}
		next := sp.NextBlk
		s.t.Rel.ReleaseBuffer(buf)

		if len(s.items) > 0 || !keepScanning {
			if !keepScanning {
				s.curLeaf = InvalidBlock
			} else {
				s.curLeaf = next
			}
			return nil
		}
		if next == InvalidBlock {
			s.done = true
			return nil
		}
		s.curLeaf = next
	}
}

// Next advances the scan, returning (tuple, tid, true, nil) on a match.
func (s *Scan) Next() (page.IndexTuple, page.TID, bool, error) {
	if !s.started {
		return s.First()
	}
	for {
		if s.idx < len(s.items) {
			it := s.items[s.idx]
			s.idx++
			return it, it.Self, true, nil
		}
		if s.done {
			return page.IndexTuple{}, page.TID{}, false, nil
		}
		if err := s.loadPage(); err != nil {
			return page.IndexTuple{}, page.TID{}, false, err
		}
		if len(s.items) == 0 && s.done {
			return page.IndexTuple{}, page.TID{}, false, nil
		}
	}
}
