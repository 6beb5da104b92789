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

// Jenkins lookup3 mix, ported byte-for-byte in spirit
// from the reference hash function: three 32-bit accumulators mixed
// three words at a time, with a final avalanche over the remainder.

func rot(x, k uint32) uint32 { return (x << k) | (x >> (32 - k)) }

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= rot(c, 4)
	c += b
	b -= a
	b ^= rot(a, 6)
	a += c
	c -= b
	c ^= rot(b, 8)
	b += a
	a -= c
	a ^= rot(c, 16)
	c += b
	b -= a
	b ^= rot(a, 19)
	a += c
	c -= b
	c ^= rot(b, 4)
	b += a
	return a, b, c
}

func final(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= rot(b, 14)
	a ^= c
	a -= rot(c, 11)
	b ^= a
	b -= rot(a, 25)
	c ^= b
	c -= rot(b, 16)
	a ^= c
	a -= rot(c, 4)
	b ^= a
	b -= rot(a, 14)
	c ^= b
	c -= rot(b, 24)
	return a, b, c
}

// HashBytes computes the 32-bit lookup3 hash of key, seeded the way
// the reference implementation does: initial value
// 0x9e3779b9 + len(key) + salt.
func HashBytes(key []byte, salt uint32) uint32 {
	length := uint32(len(key))
	a := uint32(0x9e3779b9) + length + salt
	b := a
	c := a

	for len(key) > 12 {
		a += uint32(key[0]) | uint32(key[1])<<8 | uint32(key[2])<<16 | uint32(key[3])<<24
		b += uint32(key[4]) | uint32(key[5])<<8 | uint32(key[6])<<16 | uint32(key[7])<<24
		c += uint32(key[8]) | uint32(key[9])<<8 | uint32(key[10])<<16 | uint32(key[11])<<24
		a, b, c = mix(a, b, c)
		key = key[12:]
	}

	var tail [12]byte
	copy(tail[:], key)
	c += length
	a += uint32(tail[0]) | uint32(tail[1])<<8 | uint32(tail[2])<<16 | uint32(tail[3])<<24
	b += uint32(tail[4]) | uint32(tail[5])<<8 | uint32(tail[6])<<16 | uint32(tail[7])<<24
	c += (uint32(tail[8]) | uint32(tail[9])<<8 | uint32(tail[10])<<16) << 8 // preserve length in low byte of c
	c += uint32(tail[11]) << 24

	_, _, c = final(a, b, c)
	return c
}
