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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemHostInitReadWrite(t *testing.T) {
	h, err := NewMemHost(4)
	require.NoError(t, err)

	pages := bytes.Repeat([]byte{0xAB}, 8192*2)
	require.NoError(t, h.Init("rel", pages, 2, 8192, 0))

	got, err := h.Read("rel", 1, 8192)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xAB}, 8192), got)

	require.NoError(t, h.Write("rel", 0, bytes.Repeat([]byte{0xCD}, 8192)))
	got, err = h.Read("rel", 0, 8192)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xCD}, 8192), got)
}

func TestMemHostReadUninitializedErrors(t *testing.T) {
	h, err := NewMemHost(4)
	require.NoError(t, err)
	require.NoError(t, h.Init("rel", bytes.Repeat([]byte{1}, 8192), 1, 8192, 0))

	_, err = h.Read("rel", 5, 8192)
	require.Error(t, err)

	_, err = h.Read("missing", 0, 8192)
	require.Error(t, err)
}

func TestMemHostWriteOutOfRangeErrors(t *testing.T) {
	h, err := NewMemHost(4)
	require.NoError(t, err)
	require.NoError(t, h.Init("rel", bytes.Repeat([]byte{1}, 8192), 1, 8192, 0))

	err = h.Write("rel", 5, bytes.Repeat([]byte{2}, 8192))
	require.Error(t, err)
}

func TestMemHostCloseDropsFile(t *testing.T) {
	h, err := NewMemHost(4)
	require.NoError(t, err)
	require.NoError(t, h.Init("rel", bytes.Repeat([]byte{1}, 8192), 1, 8192, 0))
	require.NoError(t, h.Close("rel"))

	_, err = h.Read("rel", 0, 8192)
	require.Error(t, err)
}

func TestMemHostInitOffsetExtendsFile(t *testing.T) {
	h, err := NewMemHost(4)
	require.NoError(t, err)
	require.NoError(t, h.Init("rel", bytes.Repeat([]byte{1}, 8192), 1, 8192, 0))
	require.NoError(t, h.Init("rel", bytes.Repeat([]byte{2}, 8192), 1, 8192, 3))

	got, err := h.Read("rel", 3, 8192)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{2}, 8192), got)

	_, err = h.Read("rel", 1, 8192)
	require.Error(t, err) // gap block never initialized
}

func TestCacheKeyDistinguishesLargeBlockNumbers(t *testing.T) {
	require.NotEqual(t, cacheKey("f", 1), cacheKey("f", 11))
	require.NotEqual(t, cacheKey("f", 256), cacheKey("f", 2560))
}
