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

package hashidx

import (
	"github.com/erigontech/soe/internal/buffer"
	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
)

// SpecialAreaSize is shared by every hash-index page, metapage
// included, so the buffer manager's PageFamily stays uniform across
// page_id.
const SpecialAreaSize = metaSpecialSize

// Family implements buffer.PageFamily for hash-index pages. Freshly
// extended pages default to overflow-shaped blanks; Insert/expand
// overwrite the special area with the correct page_id immediately
// after allocation.
type Family struct{}

func (Family) PageInit(p *page.Page) {
	p.Init(SpecialAreaSize)
	writeSpecial(p, special{PageID: PageOverflow, RealBlk: oram.DummyBlock})
}

func (Family) SpecialAreaSize() int { return SpecialAreaSize }

// Dummy builds a blank hash page for ofile.Adapter's DummyPageInit hook.
func Dummy() *page.Page {
	p := page.New()
	Family{}.PageInit(p)
	return p
}

// RealBlockOf/SetRealBlock wire into ofile.Adapter.
func RealBlockOf(p *page.Page) uint32 { return readSpecial(p).RealBlk }

func SetRealBlock(p *page.Page, real uint32) {
	s := readSpecial(p)
	s.RealBlk = real
	writeSpecial(p, s)
}

var _ buffer.PageFamily = Family{}
