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
	"io"

	"github.com/outline-aead/streamio/streamio/buffer"
)

// readerState mirrors writerState: an explicit sentinel for σ rather
// than inferring it from whether a Cryptor pointer is nil.
type readerState int

const (
	readerUninit readerState = iota
	readerStreaming
	readerDrained
)

// Reader is an io.Reader that transparently reads a nonce header and
// length-prefixed ciphertext chunks from src, decrypting and
// delivering plaintext as the caller drains it. All methods must be
// called from a single goroutine; see spec.md §5.
type Reader struct {
	src          io.Reader
	buf          *buffer.Buffer
	construction Construction
	cryptor      Cryptor
	state        readerState

	capEff      int
	pendingLen  int // declared length of the next chunk to read; 0 once the terminator is observed
	readOffset  int

	log logger
}

// NewReader constructs a Reader over src using the given Construction,
// with buf as its working buffer. It fails with ErrInvalidCapacity if
// buf's capacity is zero.
func NewReader(construction Construction, buf *buffer.Buffer, src io.Reader) (*Reader, error) {
	buf.Truncate(0)
	capEff := min(buf.Cap(), maxChunkLength)
	if capEff == 0 {
		return nil, ErrInvalidCapacity
	}
	return &Reader{
		src:          src,
		buf:          buf,
		construction: construction,
		state:        readerUninit,
		capEff:       capEff,
		log:          pkgLogger,
	}, nil
}

// readChunkLength implements spec.md §4.4's length-read: it reads
// exactly 4 bytes and interprets them as a big-endian chunk length,
// treating a clean EOF at offset 0 as the terminator.
func (r *Reader) readChunkLength() error {
	var prefix [lengthPrefixSize]byte
	offset := 0
	for offset < lengthPrefixSize {
		n, err := r.src.Read(prefix[offset:])
		offset += n
		if err != nil {
			if err == io.EOF {
				if offset == 0 {
					r.pendingLen = 0
					return nil
				}
				return aeadErrorf("truncated length prefix", io.ErrUnexpectedEOF)
			}
			return err
		}
		if n == 0 {
			return aeadErrorf("truncated length prefix", io.ErrUnexpectedEOF)
		}
	}
	n := readLength(prefix[:])
	if n > r.capEff {
		return aeadErrorf("oversized chunk", nil)
	}
	r.pendingLen = n
	return nil
}

func (r *Reader) readExact(p []byte) error {
	_, err := io.ReadFull(r.src, p)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return aeadErrorf("truncated chunk", err)
		}
		return err
	}
	return nil
}

// Read implements io.Reader per spec.md §4.4's read algorithm.
func (r *Reader) Read(p []byte) (int, error) {
	if r.state == readerUninit {
		nonce := make([]byte, r.construction.NonceSize())
		if err := r.readExact(nonce); err != nil {
			return 0, err
		}
		cryptor, err := r.construction.NewCryptor(nonce)
		if err != nil {
			return 0, aeadErrorf("construct cryptor", err)
		}
		r.cryptor = cryptor
		r.state = readerStreaming
		if err := r.readChunkLength(); err != nil {
			return 0, err
		}
	}

	for r.buf.Len() == 0 {
		if r.pendingLen == 0 {
			if r.state == readerDrained {
				return 0, io.EOF
			}
			// A zero-length prefix here means the terminator appeared
			// before any chunk was ever read: the wire must always carry
			// at least one frame (spec.md §4.5), even for empty
			// plaintext, so this is a malformed stream.
			return 0, aeadErrorf("terminator before any chunk", nil)
		}

		if err := r.buf.ResizeZeroed(r.pendingLen); err != nil {
			return 0, aeadErrorf("oversized chunk", err)
		}
		if err := r.readExact(r.buf.Bytes()); err != nil {
			return 0, err
		}
		if err := r.readChunkLength(); err != nil {
			return 0, err
		}

		var plaintext []byte
		var err error
		if r.pendingLen == 0 {
			plaintext, err = r.cryptor.DecryptLast(r.buf.Bytes())
			if err == nil {
				r.state = readerDrained
			}
		} else {
			plaintext, err = r.cryptor.DecryptNext(r.buf.Bytes())
		}
		if err != nil {
			r.log.Warningf("streamio: decrypt failed: %v", err)
			readerAEADFailures.Inc()
			return 0, aeadErrorf("decrypt chunk", err)
		}
		r.buf.Truncate(len(plaintext))
	}

	n := r.buf.Len() - r.readOffset
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.buf.Bytes()[r.readOffset:r.readOffset+n])
	r.buf.ZeroRange(r.readOffset, r.readOffset+n)

	if r.readOffset+n == r.buf.Len() {
		r.readOffset = 0
		r.buf.Truncate(0)
	} else {
		r.readOffset += n
	}
	readerBytesDelivered.Add(float64(n))
	return n, nil
}

// IntoInner returns the underlying source. The Reader has no fallible
// teardown: unlike Writer, nothing needs to be finalized on the read
// side.
func (r *Reader) IntoInner() io.Reader {
	return r.src
}
