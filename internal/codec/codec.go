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

// Package codec encrypts and decrypts exactly one page at a time. It
// treats the plaintext as opaque: callers are responsible for the page
// layout. The key and IV are process-wide and fixed at this abstraction
// level — see the Open Questions in DESIGN.md for the security
// implications of a static IV, which this package deliberately
// preserves rather than "fixes", per spec.
package codec

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/erigontech/soe/internal/soeerr"
)

// KeySize is the AES-256 key size this codec requires.
const KeySize = 32

// BlockSize is the backing cipher's block size (AES: 16 bytes). Pages
// must be a multiple of this.
const BlockSize = aes.BlockSize

// Codec encrypts/decrypts fixed-size pages with AES-CBC under one
// process-wide key and IV.
type Codec struct {
	block cipher.Block
	iv    [BlockSize]byte
}

// New builds a Codec from a caller-supplied key and IV. Both must be
// exactly KeySize and BlockSize bytes; this is the crypto material the
// enclave loader is responsible for provisioning once at session init
// and never mutating afterward (spec §9's "truly process-wide data").
func New(key, iv []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, soeerr.Newf(soeerr.CryptoFault, "codec: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != BlockSize {
		return nil, soeerr.Newf(soeerr.CryptoFault, "codec: iv must be %d bytes, got %d", BlockSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, soeerr.Wrap(soeerr.CryptoFault, err, "codec: new cipher")
	}
	c := &Codec{block: block}
	copy(c.iv[:], iv)
	return c, nil
}

// Encrypt produces ciphertext for exactly one plaintext page. plaintext's
// length must be a multiple of BlockSize (callers pad the page format
// itself to BLCKSZ, which is always block-aligned). Either the full
// ciphertext is returned, or an error — there are no partial writes.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext)%BlockSize != 0 {
		return nil, soeerr.Newf(soeerr.CryptoFault, "codec: plaintext length %d not a multiple of block size", len(plaintext))
	}
	ciphertext := make([]byte, len(plaintext))
	mode := cipher.NewCBCEncrypter(c.block, c.iv[:])
	mode.CryptBlocks(ciphertext, plaintext)
	return ciphertext, nil
}

// Decrypt reverses Encrypt. ciphertext's length must be a multiple of
// BlockSize.
func (c *Codec) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%BlockSize != 0 {
		return nil, soeerr.Newf(soeerr.CryptoFault, "codec: ciphertext length %d not a multiple of block size", len(ciphertext))
	}
	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(c.block, c.iv[:])
	mode.CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}
