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

// Package prf computes the PRF the oblivious file adapters use to label
// a single access: a deterministic, stateless function of
// (level, offset, counter) producing a 128-bit token.
package prf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// Token is the 128-bit PRF output labeling one oblivious access.
type Token [16]byte

// PRF computes tokens with HMAC-SHA256 under a process-wide key.
type PRF struct {
	key []byte
}

// New builds a PRF under the given key. The key is provisioned once at
// enclave load, same as the codec's — see internal/codec.
func New(key []byte) *PRF {
	k := make([]byte, len(key))
	copy(k, key)
	return &PRF{key: k}
}

// Compute returns HMAC-SHA256(key, level || offset || counter) truncated
// to its first 16 bytes as the access token. The function is stateless
// and deterministic: calling it twice with identical inputs yields an
// identical token.
func (p *PRF) Compute(level, offset, counter uint32) Token {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], level)
	binary.BigEndian.PutUint32(buf[4:8], offset)
	binary.BigEndian.PutUint32(buf[8:12], counter)

	mac := hmac.New(sha256.New, p.key)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	var tok Token
	copy(tok[:], sum[:16])
	return tok
}

// FastPRF is the prototype-measurement configuration described in
// spec.md §4.2: the token degenerates to two 32-bit integers, counter
// and counter+1, repeated — used only to approximate the cost of a real
// PRF call in throughput benchmarks, never in a real session.
type FastPRF struct{}

// Compute implements the fast, insecure configuration.
func (FastPRF) Compute(_, _, counter uint32) Token {
	var tok Token
	binary.BigEndian.PutUint32(tok[0:4], counter)
	binary.BigEndian.PutUint32(tok[4:8], counter+1)
	binary.BigEndian.PutUint32(tok[8:12], counter)
	binary.BigEndian.PutUint32(tok[12:16], counter+1)
	return tok
}

// Func is the common interface both configurations satisfy; the
// oblivious file adapters depend on this, not a concrete type.
type Func interface {
	Compute(level, offset, counter uint32) Token
}

var (
	_ Func = (*PRF)(nil)
	_ Func = FastPRF{}
)
