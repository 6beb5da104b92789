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
	"github.com/erigontech/soe/internal/buffer"
	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
)

// Family implements buffer.PageFamily for dynamic B-tree pages.
type Family struct{}

func (Family) PageInit(p *page.Page) {
	p.Init(SpecialAreaSize)
	writeSpecial(p, special{RealBlk: oram.DummyBlock, Flags: FlagLeaf})
}

func (Family) SpecialAreaSize() int { return SpecialAreaSize }

// Dummy builds a blank B-tree page for ofile.Adapter's DummyPageInit.
func Dummy() *page.Page {
	p := page.New()
	Family{}.PageInit(p)
	return p
}

func RealBlockOf(p *page.Page) uint32 { return readSpecial(p).RealBlk }

func SetRealBlock(p *page.Page, real uint32) {
	s := readSpecial(p)
	s.RealBlk = real
	writeSpecial(p, s)
}

var _ buffer.PageFamily = Family{}
