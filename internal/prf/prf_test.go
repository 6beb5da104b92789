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

package prf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeIsDeterministic(t *testing.T) {
	p := New(bytes.Repeat([]byte{0x7}, 32))
	t1 := p.Compute(1, 2, 3)
	t2 := p.Compute(1, 2, 3)
	require.Equal(t, t1, t2)
}

func TestComputeVariesWithEachInput(t *testing.T) {
	p := New(bytes.Repeat([]byte{0x7}, 32))
	base := p.Compute(1, 2, 3)

	require.NotEqual(t, base, p.Compute(9, 2, 3))
	require.NotEqual(t, base, p.Compute(1, 9, 3))
	require.NotEqual(t, base, p.Compute(1, 2, 9))
}

func TestComputeVariesWithKey(t *testing.T) {
	p1 := New(bytes.Repeat([]byte{0x1}, 32))
	p2 := New(bytes.Repeat([]byte{0x2}, 32))
	require.NotEqual(t, p1.Compute(1, 2, 3), p2.Compute(1, 2, 3))
}

func TestFastPRFDegenerateForm(t *testing.T) {
	var f FastPRF
	tok := f.Compute(0, 0, 5)
	require.Equal(t, uint32(5), beUint32(tok[0:4]))
	require.Equal(t, uint32(6), beUint32(tok[4:8]))
	require.Equal(t, uint32(5), beUint32(tok[8:12]))
	require.Equal(t, uint32(6), beUint32(tok[12:16]))
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
