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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashBytesDeterministic(t *testing.T) {
	require.Equal(t, HashBytes([]byte("alpha"), 0), HashBytes([]byte("alpha"), 0))
}

func TestHashBytesVariesWithInput(t *testing.T) {
	require.NotEqual(t, HashBytes([]byte("alpha"), 0), HashBytes([]byte("bravo"), 0))
	require.NotEqual(t, HashBytes([]byte("alpha"), 0), HashBytes([]byte("alpha"), 1))
}

func TestHashBytesHandlesShortAndLongKeys(t *testing.T) {
	// Exercise both the 12-byte-chunk loop and the tail path.
	short := HashBytes([]byte("a"), 7)
	long := HashBytes([]byte("this key is deliberately longer than twelve bytes"), 7)
	require.NotEqual(t, uint32(0), short)
	require.NotEqual(t, uint32(0), long)
}

func TestHashBytesEmptyKey(t *testing.T) {
	// Must not panic on a zero-length key.
	_ = HashBytes(nil, 0)
}
