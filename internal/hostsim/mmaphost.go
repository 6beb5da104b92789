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

package hostsim

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/soe/internal/soeerr"
)

// MmapHost backs each named file with an actual memory-mapped file on
// disk, for demos that want the host simulator's ciphertext store to
// survive process exit. Layout is a flat array of fixed-size
// ciphertext pages, same as MemHost, but durable.
type MmapHost struct {
	dir       string
	blockSize uint32

	mu    sync.Mutex
	files map[string]*mmapFile
	cache *lru.Cache[string, []byte]
}

type mmapFile struct {
	f   *os.File
	mm  mmap.MMap
	len uint32 // number of blocks currently mapped
}

// NewMmapHost builds a host simulator whose files live under dir.
func NewMmapHost(dir string, blockSize uint32, cacheSize int) (*MmapHost, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	c, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, soeerr.Wrap(soeerr.HostError, err, "hostsim: build page cache")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, soeerr.Wrap(soeerr.HostError, err, "hostsim: create backing dir")
	}
	return &MmapHost{dir: dir, blockSize: blockSize, files: make(map[string]*mmapFile), cache: c}, nil
}

func (h *MmapHost) path(filename string) string { return h.dir + string(os.PathSeparator) + filename }

// Init grows the backing file to hold initOffset+nblocks pages and
// writes the supplied dummy-page bytes into the newly-added range.
func (h *MmapHost) Init(filename string, pages []byte, nblocks, blocksize uint32, initOffset uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	mf, ok := h.files[filename]
	if !ok {
		f, err := os.OpenFile(h.path(filename), os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return soeerr.Wrap(soeerr.HostError, err, "hostsim: open backing file")
		}
		mf = &mmapFile{f: f}
		h.files[filename] = mf
	}

	newLen := initOffset + nblocks
	if err := mf.f.Truncate(int64(newLen) * int64(blocksize)); err != nil {
		return soeerr.Wrap(soeerr.HostError, err, "hostsim: truncate backing file")
	}
	if mf.mm != nil {
		_ = mf.mm.Unmap()
	}
	m, err := mmap.Map(mf.f, mmap.RDWR, 0)
	if err != nil {
		return soeerr.Wrap(soeerr.HostError, err, "hostsim: mmap backing file")
	}
	mf.mm = m
	mf.len = newLen

	for i := uint32(0); i < nblocks; i++ {
		start := i * blocksize
		dst := (initOffset + i) * blocksize
		copy(mf.mm[dst:dst+blocksize], pages[start:start+blocksize])
	}
	return nil
}

// Read fetches the ciphertext page at blkno through the cache, falling
// back to the mapped file.
func (h *MmapHost) Read(filename string, blkno uint32, pageSize uint32) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ct, ok := h.cache.Get(cacheKey(filename, blkno)); ok {
		out := make([]byte, len(ct))
		copy(out, ct)
		return out, nil
	}

	mf, ok := h.files[filename]
	if !ok || blkno >= mf.len {
		return nil, soeerr.Newf(soeerr.HostError, "hostsim: read of uninitialized block %d in %q", blkno, filename)
	}
	start := blkno * pageSize
	out := make([]byte, pageSize)
	copy(out, mf.mm[start:start+pageSize])
	h.cache.Add(cacheKey(filename, blkno), out)
	return out, nil
}

// Write stores the ciphertext page at blkno into the mapped file.
func (h *MmapHost) Write(filename string, blkno uint32, block []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	mf, ok := h.files[filename]
	if !ok || blkno >= mf.len {
		return soeerr.Newf(soeerr.HostError, "hostsim: write of out-of-range block %d in %q", blkno, filename)
	}
	start := blkno * uint32(len(block))
	copy(mf.mm[start:start+uint32(len(block))], block)
	h.cache.Add(cacheKey(filename, blkno), append([]byte(nil), block...))
	return nil
}

// Close unmaps and releases a file's resources.
func (h *MmapHost) Close(filename string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	mf, ok := h.files[filename]
	if !ok {
		return nil
	}
	if mf.mm != nil {
		_ = mf.mm.Unmap()
	}
	_ = mf.f.Close()
	delete(h.files, filename)
	return nil
}
