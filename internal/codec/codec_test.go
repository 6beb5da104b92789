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

package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeyIV() ([]byte, []byte) {
	key := bytes.Repeat([]byte{0x42}, KeySize)
	iv := bytes.Repeat([]byte{0x24}, BlockSize)
	return key, iv
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, iv := testKeyIV()
	c, err := New(key, iv)
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte("A"), 8192)
	ciphertext, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	got, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestNewRejectsBadKeyOrIVLength(t *testing.T) {
	_, iv := testKeyIV()
	_, err := New(make([]byte, KeySize-1), iv)
	require.Error(t, err)

	key, _ := testKeyIV()
	_, err = New(key, make([]byte, BlockSize-1))
	require.Error(t, err)
}

func TestEncryptRejectsUnalignedLength(t *testing.T) {
	key, iv := testKeyIV()
	c, err := New(key, iv)
	require.NoError(t, err)

	_, err = c.Encrypt(make([]byte, BlockSize+1))
	require.Error(t, err)

	_, err = c.Decrypt(make([]byte, BlockSize+1))
	require.Error(t, err)
}

func TestSameKeyIVProducesIdenticalCiphertext(t *testing.T) {
	key, iv := testKeyIV()
	c1, err := New(key, iv)
	require.NoError(t, err)
	c2, err := New(key, iv)
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte("x"), 64)
	ct1, err := c1.Encrypt(plaintext)
	require.NoError(t, err)
	ct2, err := c2.Encrypt(plaintext)
	require.NoError(t, err)
	require.Equal(t, ct1, ct2)
}
