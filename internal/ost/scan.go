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

import "github.com/erigontech/soe/internal/page"

// StepQuota bounds how many steppage hops a single scan call makes
// before giving up; once the real chain is exhausted, the remaining
// quota is consumed with dummy reads so the trace always shows the
// same number of steppage hops per call.
const StepQuota = 4

// Scan is an equality-scan descriptor over the deepest level reached by
// Search.
type Scan struct {
	f       *Forest
	key     []byte
	level   int
	doDummy bool
	items   []page.IndexTuple
	idx     int
	curBlk  uint32
	done    bool
}

// BeginScan wraps Search's first matching leaf into a stepping scan
// that can continue across right-sibling leaves.
func (f *Forest) BeginScan(key []byte, doDummy bool) (*Scan, error) {
	items, level, nextBlk, err := f.Search(key, doDummy)
	if err != nil {
		return nil, err
	}
	return &Scan{f: f, key: key, level: level, doDummy: doDummy, items: items, curBlk: nextBlk}, nil
}

// Next returns the next matching item, stepping across right-sibling
// leaves at the deepest level as needed.
func (s *Scan) Next() (page.IndexTuple, bool, error) {
	for {
		if s.idx < len(s.items) {
			it := s.items[s.idx]
			s.idx++
			return it, true, nil
		}
		if s.done || s.level == 0 {
			return page.IndexTuple{}, false, nil
		}
		if err := s.steppage(); err != nil {
			return page.IndexTuple{}, false, err
		}
		if len(s.items) == 0 {
			return page.IndexTuple{}, false, nil
		}
	}
}

// steppage follows the current leaf's right sibling at the same level,
// padding the unused portion of its per-call quota with dummy reads so
// the number of page reads issued per steppage call is constant
// regardless of how quickly the real chain runs out.
func (s *Scan) steppage() error {
	hops := 0
	for hops < StepQuota {
		if s.curBlk == 0 {
			s.done = true
			break
		}
		p, err := s.f.readLevel(s.level, s.curBlk)
		if err != nil {
			return err
		}
		sp := readSpecial(p)
		items, err := s.f.scanLeaf(p, s.key)
		if err != nil {
			return err
		}
		s.curBlk = sp.NextBlk
		hops++
		if len(items) > 0 {
			s.items = items
			s.idx = 0
			break
		}
		if sp.NextBlk == 0 {
			s.done = true
			break
		}
	}
	if s.doDummy {
		for ; hops < StepQuota; hops++ {
			if err := s.f.ReadDummy(s.level, 0); err != nil {
				return err
			}
		}
	}
	return nil
}
