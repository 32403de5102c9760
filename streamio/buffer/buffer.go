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

// Package buffer implements a fixed-capacity, append-only byte buffer
// suitable for use as an in-place AEAD workspace: the writer grows it
// by the AEAD tag size on encrypt, the reader shrinks it by the tag
// size on decrypt, and neither ever reallocates.
package buffer

import "fmt"

// Buffer is a byte container with a fixed maximum capacity. It never
// reallocates: Append fails once the capacity would be exceeded, and
// ResizeZeroed refuses to grow past capacity.
type Buffer struct {
	data []byte
	len  int
}

// New allocates a Buffer with the given capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Len returns the number of valid bytes currently in the buffer.
func (b *Buffer) Len() int {
	return b.len
}

// Bytes returns a mutable view over the valid region [0, Len()). The
// slice aliases the buffer's backing array and is invalidated by the
// next call to Append, Truncate, or ResizeZeroed.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.len]
}

// Append appends p to the buffer, failing if doing so would exceed
// the buffer's capacity.
func (b *Buffer) Append(p []byte) error {
	if b.len+len(p) > cap(b.data) {
		return fmt.Errorf("buffer: append of %d bytes would exceed capacity %d", len(p), cap(b.data))
	}
	b.data = b.data[:b.len+len(p)]
	copy(b.data[b.len:], p)
	b.len += len(p)
	return nil
}

// Truncate sets the buffer's length to n, which must not exceed the
// current length. It does not zero the discarded tail.
func (b *Buffer) Truncate(n int) {
	if n > b.len {
		panic("buffer: truncate beyond current length")
	}
	b.len = n
	b.data = b.data[:n]
}

// ResizeZeroed grows or shrinks the buffer to exactly n bytes,
// zero-filling any newly exposed tail. It fails if n exceeds the
// buffer's capacity.
func (b *Buffer) ResizeZeroed(n int) error {
	if n > cap(b.data) {
		return fmt.Errorf("buffer: resize to %d would exceed capacity %d", n, cap(b.data))
	}
	if n > b.len {
		b.data = b.data[:n]
		for i := b.len; i < n; i++ {
			b.data[i] = 0
		}
	} else {
		b.data = b.data[:n]
	}
	b.len = n
	return nil
}

// ZeroRange overwrites buffer[start:end] with zeros. Used for
// best-effort cleartext hygiene after delivering plaintext to a
// caller.
func (b *Buffer) ZeroRange(start, end int) {
	if end > b.len {
		end = b.len
	}
	for i := start; i < end; i++ {
		b.data[i] = 0
	}
}
