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

// writerState is the Writer state machine's explicit sentinel, per
// spec.md §9's Design Note that "σ has been consumed" must be a
// sentinel, not a live value.
type writerState int

const (
	writerInit writerState = iota
	writerWriting
	writerFinished
)

// Writer is an io.Writer that transparently chunks and authenticates
// its input, emitting a nonce header followed by length-prefixed
// ciphertext chunks. All methods, Close included, must be called from a
// single goroutine; see spec.md §5.
type Writer struct {
	dst     io.Writer
	buf     *buffer.Buffer
	cryptor Cryptor
	nonce   []byte
	capEff  int // effective plaintext capacity per chunk
	state   writerState

	log logger
}

// NewWriter constructs a Writer over dst using the given Construction
// and base nonce, with buf as its working buffer. It fails with
// ErrInvalidCapacity if buf cannot hold at least one plaintext byte
// plus the construction's AEAD tag.
func NewWriter(construction Construction, nonce []byte, buf *buffer.Buffer, dst io.Writer) (*Writer, error) {
	buf.Truncate(0)
	capEff := min(buf.Cap(), maxChunkLength) - construction.Overhead()
	if capEff <= 0 {
		return nil, ErrInvalidCapacity
	}
	cryptor, err := construction.NewCryptor(nonce)
	if err != nil {
		return nil, aeadErrorf("construct cryptor", err)
	}
	storedNonce := make([]byte, len(nonce))
	copy(storedNonce, nonce)
	return &Writer{
		dst:     dst,
		buf:     buf,
		cryptor: cryptor,
		nonce:   storedNonce,
		capEff:  capEff,
		state:   writerInit,
		log:     pkgLogger,
	}, nil
}

func (w *Writer) capacityRemaining() int {
	return w.capEff - w.buf.Len()
}

// flushBuffer implements spec.md §4.3's flush-buffer(last) algorithm.
func (w *Writer) flushBuffer(last bool) error {
	if w.state == writerFinished {
		return nil
	}

	var ciphertext []byte
	var err error
	if last {
		ciphertext, err = w.cryptor.EncryptLast(w.buf.Bytes())
	} else {
		ciphertext, err = w.cryptor.EncryptNext(w.buf.Bytes())
	}
	if err != nil {
		w.log.Warningf("streamio: encrypt failed: %v", err)
		writerAEADFailures.Inc()
		return aeadErrorf("encrypt chunk", err)
	}

	if w.state == writerInit {
		if err := writeAll(w.dst, w.nonce); err != nil {
			return err
		}
		w.state = writerWriting
	}

	lengthPrefix := make([]byte, lengthPrefixSize)
	putLength(lengthPrefix, len(ciphertext))
	if err := writeAll(w.dst, lengthPrefix); err != nil {
		return err
	}
	if err := writeAll(w.dst, ciphertext); err != nil {
		return err
	}
	writerChunksEmitted.Inc()
	writerBytesEmitted.Add(float64(len(ciphertext)))
	w.log.Debugf("streamio: emitted chunk of %d bytes (last=%v)", len(ciphertext), last)

	if last {
		// Emit the explicit zero-length terminator so the stream is
		// self-delimiting over transports that are never closed, per
		// spec.md §9's resolution of the terminator Open Question.
		terminator := make([]byte, lengthPrefixSize)
		if err := writeAll(w.dst, terminator); err != nil {
			return err
		}
		w.state = writerFinished
	}
	w.buf.Truncate(0)
	return nil
}

// Write implements io.Writer. It buffers p, flushing a non-last chunk
// first if p would not otherwise fit, and returns the number of bytes
// accepted in this call — which may be less than len(p). A buffer that
// fills to exactly capEff is flushed immediately as a non-last chunk,
// rather than held until the next Write or Flush call: this is what
// makes a plaintext that is an exact multiple of capEff produce a full
// non-last chunk followed by a separate empty last chunk on
// finalization, instead of one oversized last chunk (spec.md §4.3
// edge cases).
func (w *Writer) Write(p []byte) (int, error) {
	if w.state == writerFinished {
		return 0, aeadErrorf("write after finalization", nil)
	}
	if len(p) > w.capacityRemaining() {
		if err := w.flushBuffer(false); err != nil {
			return 0, err
		}
	}
	n := len(p)
	if n > w.capacityRemaining() {
		n = w.capacityRemaining()
	}
	if err := w.buf.Append(p[:n]); err != nil {
		return 0, aeadErrorf("buffer append", err)
	}
	if w.capacityRemaining() == 0 {
		if err := w.flushBuffer(false); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Flush finalizes the stream: it performs a last-chunk flush and then
// flushes the underlying transport, if it supports flushing.
func (w *Writer) Flush() error {
	if err := w.flushBuffer(true); err != nil {
		return err
	}
	if f, ok := w.dst.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close is the idiomatic Go realization of spec.md §9's "drop-time
// finalization": a best-effort last-chunk flush whose error is
// discarded. Callers that need to observe a finalization error must
// call Flush or IntoInner instead.
func (w *Writer) Close() error {
	_ = w.flushBuffer(true)
	return nil
}

// IntoInner finalizes the stream and, on success, returns the
// underlying transport. On failure it returns an *IntoInnerError
// carrying both the error and the Writer itself, so the buffer can
// still be inspected, per spec.md §4.3.
func (w *Writer) IntoInner() (io.Writer, error) {
	if err := w.flushBuffer(true); err != nil {
		return nil, &IntoInnerError{Err: err, Writer: w}
	}
	return w.dst, nil
}
