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

func TestMmapHostInitReadWriteRoundTrip(t *testing.T) {
	h, err := NewMmapHost(t.TempDir(), 4096, 4)
	require.NoError(t, err)

	pages := bytes.Repeat([]byte{0x11}, 4096*2)
	require.NoError(t, h.Init("rel", pages, 2, 4096, 0))

	got, err := h.Read("rel", 0, 4096)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x11}, 4096), got)

	require.NoError(t, h.Write("rel", 1, bytes.Repeat([]byte{0x22}, 4096)))
	got, err = h.Read("rel", 1, 4096)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x22}, 4096), got)
}

func TestMmapHostSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	h1, err := NewMmapHost(dir, 4096, 4)
	require.NoError(t, err)
	require.NoError(t, h1.Init("rel", bytes.Repeat([]byte{0x33}, 4096), 1, 4096, 0))
	require.NoError(t, h1.Close("rel"))

	h2, err := NewMmapHost(dir, 4096, 4)
	require.NoError(t, err)
	// A second Init with 0 new blocks beyond what's on disk still needs
	// the file reopened at its current length to read it back.
	require.NoError(t, h2.Init("rel", nil, 0, 4096, 1))
	got, err := h2.Read("rel", 0, 4096)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0x33}, 4096), got)
}

func TestMmapHostOutOfRangeErrors(t *testing.T) {
	h, err := NewMmapHost(t.TempDir(), 4096, 4)
	require.NoError(t, err)
	require.NoError(t, h.Init("rel", bytes.Repeat([]byte{1}, 4096), 1, 4096, 0))

	_, err = h.Read("rel", 5, 4096)
	require.Error(t, err)

	err = h.Write("rel", 5, bytes.Repeat([]byte{2}, 4096))
	require.Error(t, err)
}
