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
	"github.com/erigontech/soe/internal/buffer"
	"github.com/erigontech/soe/internal/heap"
	"github.com/erigontech/soe/internal/ofile"
	"github.com/erigontech/soe/internal/page"
)

func heapFamily(tableOid uint32) buffer.PageFamily { return heap.Family{TableOid: tableOid} }

func heapDummy(tableOid uint32) ofile.DummyPageInit {
	return func() *page.Page { return heap.Dummy() }
}

func heapRealOf(p *page.Page) uint32 { return heap.RealBlockOf(p) }

func heapSetReal(p *page.Page, real uint32) { heap.SetRealBlock(p, real) }
