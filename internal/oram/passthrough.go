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

package oram

import "sync"

// Passthrough is a direct, non-oblivious implementation of State: lba
// maps 1:1 to the same physical block number on every access. It is a
// test double — real deployments plug in an actual ORAM library here.
// Passthrough deliberately does not provide access-pattern
// indistinguishability (testable property 1 in spec.md §8 does not
// hold for it) and must never be wired into a production session.
type Passthrough struct {
	mu  sync.Mutex
	pos map[uint32]uint32
}

// NewPassthrough builds a Passthrough ORAM stand-in.
func NewPassthrough() *Passthrough {
	return &Passthrough{pos: make(map[uint32]uint32)}
}

func (p *Passthrough) Read(f File, lba uint32) (PLBlock, error) {
	blk, err := f.Read(lba)
	if err != nil {
		return PLBlock{}, err
	}
	p.mu.Lock()
	p.pos[lba] = lba
	p.mu.Unlock()
	return blk, nil
}

func (p *Passthrough) Write(f File, lba uint32, block PLBlock) error {
	if err := f.Write(block, lba); err != nil {
		return err
	}
	p.mu.Lock()
	p.pos[lba] = lba
	p.mu.Unlock()
	return nil
}

func (p *Passthrough) Position(lba uint32) (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.pos[lba]
	return v, ok
}

var _ State = (*Passthrough)(nil)
