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
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/soeerr"
)

// Insert performs a heap insert followed by the configured index's
// insert (hash or B-tree, per InitSOE's handlerOid). Not valid in FSOE
// (OST) mode: the static tree accepts no inserts once loaded.
func (s *Session) Insert(heapTupleBytes []byte, datum []byte) (page.TID, error) {
	if len(heapTupleBytes) > MaxTupleSize {
		return page.TID{}, soeerr.Newf(soeerr.TooLarge, "soe: tuple size %d exceeds MAX_TUPLE_SIZE %d", len(heapTupleBytes), MaxTupleSize)
	}
	if s.forest != nil {
		return page.TID{}, soeerr.New(soeerr.Unsupported, "soe: insert is not supported in FSOE/OST mode")
	}

	tup, err := heap.Insert(s.heapRel, s.TableOid, heapTupleBytes)
	if err != nil {
		return page.TID{}, err
	}

	switch s.handler {
	case HandlerHash:
		if err := s.hash.Insert(tup.Self, datum); err != nil {
			return page.TID{}, err
		}
	case HandlerBTree:
		if err := s.btree.Insert(tup.Self, datum); err != nil {
			return page.TID{}, err
		}
	}
	return tup.Self, nil
}

// InsertHeap performs a heap-only insert, bypassing the index.
func (s *Session) InsertHeap(heapTupleBytes []byte) (page.TID, error) {
	if len(heapTupleBytes) > MaxTupleSize {
		return page.TID{}, soeerr.Newf(soeerr.TooLarge, "soe: tuple size %d exceeds MAX_TUPLE_SIZE %d", len(heapTupleBytes), MaxTupleSize)
	}
	tup, err := heap.Insert(s.heapRel, s.TableOid, heapTupleBytes)
	if err != nil {
		return page.TID{}, err
	}
	return tup.Self, nil
}
