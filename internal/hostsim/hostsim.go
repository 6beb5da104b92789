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

// Package hostsim stands in for the untrusted host: the party on the
// other side of the oblivious-file callback protocol. It never sees
// plaintext — only the ciphertext pages the codec produces — and exists
// so the trusted core can be exercised end-to-end without a real
// database host attached.
package hostsim

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/soe/internal/soeerr"
)

// MemHost is an in-memory host simulator: one named file is a flat
// slice of BLCKSZ-sized ciphertext pages. A golang-lru cache sits in
// front of the backing slice purely to exercise a realistic host-side
// page cache; correctness does not depend on cache hits since the
// backing slice is always authoritative.
type MemHost struct {
	mu    sync.Mutex
	files map[string][][]byte
	cache *lru.Cache[string, []byte]
}

// NewMemHost builds a host simulator with a ciphertext-page cache sized
// cacheSize entries.
func NewMemHost(cacheSize int) (*MemHost, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	c, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, soeerr.Wrap(soeerr.HostError, err, "hostsim: build page cache")
	}
	return &MemHost{files: make(map[string][][]byte), cache: c}, nil
}

func cacheKey(filename string, blkno uint32) string {
	return fmt.Sprintf("%s#%d", filename, blkno)
}

// Init pre-allocates nblocks ciphertext pages starting at initOffset.
func (h *MemHost) Init(filename string, pages []byte, nblocks, blocksize uint32, initOffset uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f := h.files[filename]
	need := int(initOffset + nblocks)
	for len(f) < need {
		f = append(f, nil)
	}
	for i := uint32(0); i < nblocks; i++ {
		start := i * blocksize
		page := make([]byte, blocksize)
		copy(page, pages[start:start+blocksize])
		f[initOffset+i] = page
	}
	h.files[filename] = f
	return nil
}

// Read fetches the ciphertext page at blkno, consulting the cache
// first.
func (h *MemHost) Read(filename string, blkno uint32, pageSize uint32) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ct, ok := h.cache.Get(cacheKey(filename, blkno)); ok {
		out := make([]byte, len(ct))
		copy(out, ct)
		return out, nil
	}

	f, ok := h.files[filename]
	if !ok || int(blkno) >= len(f) || f[blkno] == nil {
		return nil, soeerr.Newf(soeerr.HostError, "hostsim: read of uninitialized block %d in %q", blkno, filename)
	}
	ct := f[blkno]
	h.cache.Add(cacheKey(filename, blkno), ct)
	out := make([]byte, len(ct))
	copy(out, ct)
	return out, nil
}

// Write stores the ciphertext page at blkno and refreshes the cache.
func (h *MemHost) Write(filename string, blkno uint32, block []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.files[filename]
	if !ok || int(blkno) >= len(f) {
		return soeerr.Newf(soeerr.HostError, "hostsim: write of out-of-range block %d in %q", blkno, filename)
	}
	cp := make([]byte, len(block))
	copy(cp, block)
	f[blkno] = cp
	h.cache.Add(cacheKey(filename, blkno), cp)
	return nil
}

// Close drops a file from the simulator's tables.
func (h *MemHost) Close(filename string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, filename)
	h.cache.Purge()
	return nil
}
