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

// Package ofile implements the oblivious file adapters: the bridge
// between an index/heap engine's page reads and writes and the
// untrusted host's file I/O, by way of the page codec and PRF. There is
// one adapter per on-disk family — heap, hash, dynamic B-tree, OST —
// all built on the same Adapter.
package ofile

import (
	"github.com/erigontech/soe/internal/codec"
	"github.com/erigontech/soe/internal/oram"
	"github.com/erigontech/soe/internal/page"
	"github.com/erigontech/soe/internal/prf"
	"github.com/erigontech/soe/internal/soeerr"
)

// maxInitChunk bounds peak transient memory during bulk pre-allocation:
// no more than this many pages are encrypted and hand off to the host
// in one init call.
const maxInitChunk = 1024

// HostFile is the callback protocol the untrusted host exposes for one
// named oblivious file (spec.md §6).
type HostFile interface {
	Init(filename string, pages []byte, nblocks, blocksize uint32, initOffset uint32) error
	Read(filename string, blkno uint32, pageSize uint32) ([]byte, error)
	Write(filename string, blkno uint32, block []byte) error
	Close(filename string) error
}

// DummyPageInit builds an engine-specific "dummy" initialized page: a
// page_init'd page whose special area's real-block-number field is set
// to oram.DummyBlock, so the adapter can recognize "never written for
// real" pages on read.
type DummyPageInit func() *page.Page

// RealBlockOf recovers the engine's notion of the "real" block number
// from a decoded page's special area.
type RealBlockOf func(p *page.Page) uint32

// SetRealBlock stamps the real block number into a page's special area
// before it is (re-)written, including DummyBlock for a deliberately
// blank eviction target.
type SetRealBlock func(p *page.Page, real uint32)

// Adapter is one oblivious-file bridge, parameterized by the engine's
// dummy-page shape and special-area accessors.
type Adapter struct {
	Filename string
	Codec    *codec.Codec
	PRF      prf.Func
	Host     HostFile
	Dummy    DummyPageInit
	RealOf   RealBlockOf
	SetReal  SetRealBlock

	// Level and Counter are consulted by PRF.Compute for every access.
	// A virtual relation pushes its Level and RCounter through
	// SetPRFContext before each access; the OST forest's per-level
	// adapters are built with a fixed Level and leave Counter as is.
	Level   uint32
	Counter uint32

	// lastToken is the PRF output that labeled the most recent Read or
	// Write, retrievable by the virtual relation through LastPRFToken.
	lastToken prf.Token
}

// SetPRFContext lets the virtual relation push its current OST level
// and protocol counter into the adapter before an access (spec.md §3),
// so the token computed on the next Read/Write reflects the caller's
// position rather than whatever Level/Counter happened to be set last.
func (a *Adapter) SetPRFContext(level, counter uint32) {
	a.Level = level
	a.Counter = counter
}

// LastPRFToken returns the token computed for the most recent Read or
// Write, for callers that surface it (spec.md §3's per-relation
// "current token").
func (a *Adapter) LastPRFToken() [16]byte { return [16]byte(a.lastToken) }

// Init pre-allocates nblocks pages filled with the adapter's dummy
// page, encrypted, chunked to bound peak transient memory.
func (a *Adapter) Init(nblocks uint32) error {
	remaining := nblocks
	var blockOffset uint32
	for remaining > 0 {
		chunk := remaining
		if chunk > maxInitChunk {
			chunk = maxInitChunk
		}
		buf := make([]byte, 0, int(chunk)*page.BLCKSZ)
		for i := uint32(0); i < chunk; i++ {
			p := a.Dummy()
			a.SetReal(p, oram.DummyBlock)
			ct, err := a.Codec.Encrypt(p.Bytes)
			if err != nil {
				return soeerr.Wrap(soeerr.CryptoFault, err, "ofile: init encrypt")
			}
			buf = append(buf, ct...)
		}
		if err := a.Host.Init(a.Filename, buf, chunk, page.BLCKSZ, blockOffset); err != nil {
			return soeerr.Wrap(soeerr.HostError, err, "ofile: init")
		}
		blockOffset += chunk
		remaining -= chunk
	}
	return nil
}

// Read fetches ciphertext at blockNo through the host, decrypts it, and
// recovers the real block number from the page's special area. The PRF
// labels the access with a token over (level, blockNo, counter) before
// the host call, per spec.md §4.2/§4.3.
func (a *Adapter) Read(blockNo uint32) (oram.PLBlock, error) {
	a.lastToken = a.PRF.Compute(a.Level, blockNo, a.Counter)
	ct, err := a.Host.Read(a.Filename, blockNo, page.BLCKSZ)
	if err != nil {
		return oram.PLBlock{}, soeerr.Wrap(soeerr.HostError, err, "ofile: read")
	}
	pt, err := a.Codec.Decrypt(ct)
	if err != nil {
		return oram.PLBlock{}, soeerr.Wrap(soeerr.CryptoFault, err, "ofile: read decrypt")
	}
	p, err := page.Wrap(pt)
	if err != nil {
		return oram.PLBlock{}, err
	}
	real := a.RealOf(p)
	return oram.PLBlock{RealBlockNumber: real, Size: page.BLCKSZ, Bytes: pt}, nil
}

// Write re-initializes a dummy-target page before encryption (so a
// write that evicts nothing useful is indistinguishable from a real
// eviction), then encrypts and invokes the host write callback. The PRF
// labels the access the same way Read does.
func (a *Adapter) Write(block oram.PLBlock, blockNo uint32) error {
	a.lastToken = a.PRF.Compute(a.Level, blockNo, a.Counter)
	buf := block.Bytes
	if block.RealBlockNumber == oram.DummyBlock {
		p := a.Dummy()
		a.SetReal(p, oram.DummyBlock)
		buf = p.Bytes
	}
	ct, err := a.Codec.Encrypt(buf)
	if err != nil {
		return soeerr.Wrap(soeerr.CryptoFault, err, "ofile: write encrypt")
	}
	if err := a.Host.Write(a.Filename, blockNo, ct); err != nil {
		return soeerr.Wrap(soeerr.HostError, err, "ofile: write")
	}
	return nil
}

// Close releases the host-side file handle.
func (a *Adapter) Close() error {
	if err := a.Host.Close(a.Filename); err != nil {
		return soeerr.Wrap(soeerr.HostError, err, "ofile: close")
	}
	return nil
}

var _ oram.File = (*Adapter)(nil)
