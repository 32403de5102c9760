// Copyright 2018 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package streamio

import (
	"crypto/cipher"
	"fmt"

	"github.com/shadowsocks/go-shadowsocks2/shadowaead"
)

// shadowConstruction adapts a shadowaead.Cipher — the teacher's own
// per-connection AEAD-from-salt primitive — into a Construction. The
// "base nonce" NewWriter/NewReader are given is the salt; the AEAD
// itself is derived from the salt via Encrypter/Decrypter, and the
// per-chunk counter discipline mirrors shadowsocksWriter/chunkReader's
// increment(counter) exactly.
type shadowConstruction struct {
	cipher shadowaead.Cipher
}

// ShadowAEAD returns a Construction that derives its per-stream AEAD
// from a salt using a shadowsocks cipher suite, reusing the teacher's
// own salt-derivation domain primitive instead of a bare
// crypto/cipher.AEAD.
func ShadowAEAD(c shadowaead.Cipher) Construction {
	return &shadowConstruction{cipher: c}
}

func (s *shadowConstruction) NonceSize() int { return s.cipher.SaltSize() }

func (s *shadowConstruction) Overhead() int {
	// shadowaead ciphers report their overhead only once an AEAD has
	// been derived from a salt; probe with an all-zero salt, which is
	// never used for an actual stream.
	probe := make([]byte, s.cipher.SaltSize())
	aead, err := s.cipher.Encrypter(probe)
	if err != nil {
		return 0
	}
	return aead.Overhead()
}

func (s *shadowConstruction) NewCryptor(salt []byte) (Cryptor, error) {
	if len(salt) != s.cipher.SaltSize() {
		return nil, fmt.Errorf("streamio: shadow construction expects a %d-byte salt, got %d", s.cipher.SaltSize(), len(salt))
	}
	encAEAD, err := s.cipher.Encrypter(salt)
	if err != nil {
		return nil, fmt.Errorf("streamio: failed to derive encrypter from salt: %w", err)
	}
	decAEAD, err := s.cipher.Decrypter(salt)
	if err != nil {
		return nil, fmt.Errorf("streamio: failed to derive decrypter from salt: %w", err)
	}
	return &shadowCryptor{enc: encAEAD, dec: decAEAD}, nil
}

// shadowCryptor drives a derived AEAD with a little-endian incrementing
// counter nonce, exactly as shadowsocksWriter.encryptBlock and
// chunkReader.readMessage do.
type shadowCryptor struct {
	enc, dec cipher.AEAD
	encNonce []byte
	decNonce []byte
	consumed bool
}

func incrementLE(b []byte) {
	for i := range b {
		b[i]++
		if b[i] != 0 {
			return
		}
	}
}

func (c *shadowCryptor) ensureNonces() {
	if c.encNonce == nil {
		c.encNonce = make([]byte, c.enc.NonceSize())
	}
	if c.decNonce == nil {
		c.decNonce = make([]byte, c.dec.NonceSize())
	}
}

func (c *shadowCryptor) EncryptNext(buf []byte) ([]byte, error) {
	if c.consumed {
		return nil, fmt.Errorf("streamio: cryptor used after finalization")
	}
	c.ensureNonces()
	out := c.enc.Seal(buf[:0], c.encNonce, buf, nil)
	incrementLE(c.encNonce)
	return out, nil
}

func (c *shadowCryptor) EncryptLast(buf []byte) ([]byte, error) {
	out, err := c.EncryptNext(buf)
	if err != nil {
		return nil, err
	}
	c.consumed = true
	return out, nil
}

func (c *shadowCryptor) DecryptNext(buf []byte) ([]byte, error) {
	if c.consumed {
		return nil, fmt.Errorf("streamio: cryptor used after finalization")
	}
	c.ensureNonces()
	out, err := c.dec.Open(buf[:0], c.decNonce, buf, nil)
	if err != nil {
		return nil, err
	}
	incrementLE(c.decNonce)
	return out, nil
}

func (c *shadowCryptor) DecryptLast(buf []byte) ([]byte, error) {
	out, err := c.DecryptNext(buf)
	if err != nil {
		return nil, err
	}
	c.consumed = true
	return out, nil
}
