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

	"golang.org/x/crypto/chacha20poly1305"
)

// Cryptor is a stream primitive instance bound to a single nonce: the
// external collaborator the framing layer drives. EncryptNext/Last
// and DecryptNext/Last operate on buf in place, per spec.md. The
// "Last" operation is linear: a Cryptor must not be used again after
// EncryptLast or DecryptLast returns successfully.
type Cryptor interface {
	EncryptNext(buf []byte) ([]byte, error)
	EncryptLast(buf []byte) ([]byte, error)
	DecryptNext(buf []byte) ([]byte, error)
	DecryptLast(buf []byte) ([]byte, error)
}

// Construction names a stream construction: a way of deriving
// per-chunk nonces from a base nonce and a counter, paired with an
// AEAD. It corresponds to spec.md §6's "choice of stream construction"
// configuration option.
type Construction interface {
	// NonceSize is the size, in bytes, of the base nonce this
	// construction expects at Writer/Reader construction time.
	NonceSize() int
	// Overhead is the AEAD's tag size in bytes.
	Overhead() int
	// NewCryptor derives a Cryptor from the given base nonce.
	NewCryptor(nonce []byte) (Cryptor, error)
}

// streamAEAD implements Construction over any crypto/cipher.AEAD using
// an explicit counter appended to (BE32) or folded into (LE31) the
// AEAD's nonce, the way original_source's aead::stream::{StreamBE32,
// StreamLE31} do.
type streamAEAD struct {
	aead   cipher.AEAD
	le31   bool
	nonceN int // size of the caller-supplied base nonce
}

// BE32 returns a Construction using a 32-bit big-endian counter
// appended after the base nonce: the resulting per-chunk nonce is
// exactly aead.NonceSize() bytes, split into (base nonce || 4-byte
// counter). For AEADs whose
// NonceSize equals the conventional 12, the base nonce passed to
// NewWriter/NewReader must be NonceSize()-4 bytes; the last 4 bytes of
// the per-chunk nonce carry the big-endian counter and, in the high
// bit of the counter's most significant byte, the last-chunk flag.
func BE32(aead cipher.AEAD) Construction {
	return &streamAEAD{aead: aead, le31: false, nonceN: aead.NonceSize() - 4}
}

// LE31 returns a Construction using a 31-bit little-endian counter
// occupying the last 4 bytes of the per-chunk nonce, with the top bit
// of the counter's most significant byte reserved as the last-chunk
// flag (hence 31, not 32, usable counter bits). The base nonce passed
// to NewWriter/NewReader must be NonceSize()-4 bytes.
func LE31(aead cipher.AEAD) Construction {
	return &streamAEAD{aead: aead, le31: true, nonceN: aead.NonceSize() - 4}
}

func (s *streamAEAD) NonceSize() int { return s.nonceN }
func (s *streamAEAD) Overhead() int  { return s.aead.Overhead() }

func (s *streamAEAD) NewCryptor(nonce []byte) (Cryptor, error) {
	if len(nonce) != s.nonceN {
		return nil, fmt.Errorf("streamio: construction expects a %d-byte nonce, got %d", s.nonceN, len(nonce))
	}
	full := make([]byte, s.aead.NonceSize())
	copy(full, nonce)
	return &counterCryptor{aead: s.aead, le31: s.le31, nonce: full, baseLen: s.nonceN}, nil
}

// counterCryptor tracks the running per-chunk nonce for one stream
// direction. consumed guards against reuse after a "last" operation,
// per spec.md's tagged-variant Design Note.
type counterCryptor struct {
	aead     cipher.AEAD
	le31     bool
	nonce    []byte
	baseLen  int
	consumed bool
}

func (c *counterCryptor) setLast() {
	tail := c.nonce[c.baseLen:]
	if c.le31 {
		tail[len(tail)-1] |= 0x80
	} else {
		tail[0] |= 0x80
	}
}

// incrementCounter advances the running counter by one. The carry
// chain runs across all 4 tail bytes, including the flag-bearing one,
// so the full ~31 usable bits (BE32: 32 bits minus the reserved flag
// bit; LE31: likewise) actually participate in the counter instead of
// wrapping every 2^24 chunks; the flag byte's top bit is saved before
// the carry and restored afterward so incrementing never disturbs it.
func (c *counterCryptor) incrementCounter() {
	tail := c.nonce[c.baseLen:]
	if c.le31 {
		flag := tail[len(tail)-1] & 0x80
		for i := 0; i < len(tail); i++ {
			tail[i]++
			if tail[i] != 0 {
				break
			}
		}
		tail[len(tail)-1] = tail[len(tail)-1]&^0x80 | flag
	} else {
		flag := tail[0] & 0x80
		for i := len(tail) - 1; i >= 0; i-- {
			tail[i]++
			if tail[i] != 0 {
				break
			}
		}
		tail[0] = tail[0]&^0x80 | flag
	}
}

func (c *counterCryptor) EncryptNext(buf []byte) ([]byte, error) {
	if c.consumed {
		return nil, fmt.Errorf("streamio: cryptor used after finalization")
	}
	out := c.aead.Seal(buf[:0], c.nonce, buf, nil)
	c.incrementCounter()
	return out, nil
}

func (c *counterCryptor) EncryptLast(buf []byte) ([]byte, error) {
	if c.consumed {
		return nil, fmt.Errorf("streamio: cryptor used after finalization")
	}
	c.setLast()
	out := c.aead.Seal(buf[:0], c.nonce, buf, nil)
	c.consumed = true
	return out, nil
}

func (c *counterCryptor) DecryptNext(buf []byte) ([]byte, error) {
	if c.consumed {
		return nil, fmt.Errorf("streamio: cryptor used after finalization")
	}
	out, err := c.aead.Open(buf[:0], c.nonce, buf, nil)
	if err != nil {
		return nil, err
	}
	c.incrementCounter()
	return out, nil
}

func (c *counterCryptor) DecryptLast(buf []byte) ([]byte, error) {
	if c.consumed {
		return nil, fmt.Errorf("streamio: cryptor used after finalization")
	}
	c.setLast()
	out, err := c.aead.Open(buf[:0], c.nonce, buf, nil)
	if err != nil {
		return nil, err
	}
	c.consumed = true
	return out, nil
}

// NewChaCha20Poly1305BE32 is a convenience constructor combining the
// default AEAD used throughout spec.md §8's worked examples with the
// BE32 construction.
func NewChaCha20Poly1305BE32(key []byte) (Construction, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("streamio: %w", err)
	}
	return BE32(aead), nil
}

// NewChaCha20Poly1305LE31 is the LE31-construction counterpart of
// NewChaCha20Poly1305BE32.
func NewChaCha20Poly1305LE31(key []byte) (Construction, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("streamio: %w", err)
	}
	return LE31(aead), nil
}
