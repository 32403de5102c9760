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
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/outline-aead/streamio/streamio/buffer"
	"golang.org/x/crypto/chacha20poly1305"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Curabitur eu erat non turpis viverra mollis vel a mauris. Vestibulum luctus justo vitae diam ultrices, eget vehicula velit consectetur. Sed ut sapien odio. Nullam non porttitor augue. Duis euismod, augue sed blandit eleifend, leo enim rhoncus lacus, in efficitur metus massa quis justo. Nunc velit quam, aliquam vitae enim ut, facilisis molestie odio. Phasellus nec euismod nisi, sit amet dignissim arcu. Nullam pulvinar aliquam purus ut aliquet. Sed iaculis, odio in luctus molestie, purus dui vehicula est, sed egestas erat diam sed arcu. Cras venenatis magna vitae tristique mattis."

func testKey() []byte {
	return bytes.Repeat([]byte("k"), chacha20poly1305.KeySize)
}

func newBE32(t *testing.T) Construction {
	t.Helper()
	c, err := NewChaCha20Poly1305BE32(testKey())
	if err != nil {
		t.Fatalf("NewChaCha20Poly1305BE32: %v", err)
	}
	return c
}

func encryptAll(t *testing.T, construction Construction, nonce []byte, capacity int, plaintext []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	w, err := NewWriter(construction, nonce, buffer.New(capacity), &out)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := writeAll(w, plaintext); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return out.Bytes()
}

func decryptAll(t *testing.T, construction Construction, capacity int, ciphertext []byte) ([]byte, error) {
	t.Helper()
	r, err := NewReader(construction, buffer.New(capacity), bytes.NewReader(ciphertext))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return io.ReadAll(r)
}

func roundTrip(t *testing.T, plaintext string, writerCap, readerCap int) {
	t.Helper()
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	ciphertext := encryptAll(t, construction, nonce, writerCap, []byte(plaintext))

	construction2 := newBE32(t)
	got, err := decryptAll(t, construction2, readerCap, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != plaintext {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(plaintext))
	}
}

func TestRoundTripEmpty(t *testing.T) {
	roundTrip(t, "", 128, 128)
}

func TestRoundTripSingleChunk(t *testing.T) {
	roundTrip(t, "hello world!", 128, 128)
}

func TestRoundTripMultiChunk(t *testing.T) {
	roundTrip(t, loremIpsum, 128, 256)
}

func TestRoundTripExactMultiple(t *testing.T) {
	// capacity 128 => effective 112; 112 bytes of plaintext exactly
	// fills one chunk, forcing a non-last flush plus an empty last
	// chunk on finalize.
	plaintext := bytes.Repeat([]byte("x"), 112)
	roundTrip(t, string(plaintext), 128, 256)
}

func TestCiphertextLength(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	plaintext := []byte("hello world!")
	ciphertext := encryptAll(t, construction, nonce, 128, plaintext)

	// nonce(8) + len(4) + ciphertext(12+16) + terminator(4)
	want := construction.NonceSize() + lengthPrefixSize + (len(plaintext) + construction.Overhead()) + lengthPrefixSize
	if len(ciphertext) != want {
		t.Errorf("ciphertext length = %d, want %d", len(ciphertext), want)
	}
}

func TestTamperDetection(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	ciphertext := encryptAll(t, construction, nonce, 128, []byte("hello world!"))

	tampered := make([]byte, len(ciphertext))
	copy(tampered, ciphertext)
	tampered[construction.NonceSize()+1] ^= 0x01

	construction2 := newBE32(t)
	if _, err := decryptAll(t, construction2, 128, tampered); err == nil {
		t.Fatal("expected tamper detection to fail decryption")
	} else if _, ok := err.(*AEADError); !ok {
		t.Errorf("error = %T, want *AEADError", err)
	}
}

func TestTruncationDetection(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	ciphertext := encryptAll(t, construction, nonce, 128, []byte("hello world!"))

	// Drop everything from partway through the first frame's
	// ciphertext onward; per spec.md §4.4's length-read rule, an
	// end-of-stream observed after at least one byte of a length
	// prefix (or mid-chunk) is always an AEAD-kind error. Dropping
	// exactly the trailing 4-byte terminator is intentionally not
	// covered here: per §4.4's own accepted-sentinel rule, a clean
	// end-of-stream at offset 0 of a length prefix is indistinguishable
	// from — and treated identically to — the explicit terminator (see
	// DESIGN.md's Open Question decision).
	for _, cut := range []int{1, 2, 3, construction.NonceSize() + 1, len(ciphertext) - 1} {
		truncated := ciphertext[:cut]
		construction2 := newBE32(t)
		out, err := decryptAll(t, construction2, 128, truncated)
		if err == nil && len(out) == len("hello world!") {
			t.Errorf("truncation at %d bytes went undetected", cut)
		}
	}
}

func TestOversizedFrameRejected(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())

	var malicious bytes.Buffer
	malicious.Write(nonce)
	badLength := make([]byte, lengthPrefixSize)
	putLength(badLength, 1<<20)
	malicious.Write(badLength)

	construction2 := newBE32(t)
	_, err := decryptAll(t, construction2, 128, malicious.Bytes())
	if err == nil {
		t.Fatal("expected oversized frame to be rejected")
	}
	if _, ok := err.(*AEADError); !ok {
		t.Errorf("error = %T, want *AEADError", err)
	}
}

func TestChunkBoundaryTransparency(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	ciphertext := encryptAll(t, construction, nonce, 128, []byte(loremIpsum))

	construction1 := newBE32(t)
	r, err := NewReader(construction1, buffer.New(128), bytes.NewReader(ciphertext))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	small, err := io.ReadAll(iotest.OneByteReader(r))
	if err != nil {
		t.Fatalf("decrypt with one-byte reads: %v", err)
	}
	construction2 := newBE32(t)
	large, err := decryptAll(t, construction2, 512, ciphertext)
	if err != nil {
		t.Fatalf("decrypt with large reads: %v", err)
	}
	if !bytes.Equal(small, large) {
		t.Error("decrypted bytes differ across caller read sizes")
	}
}

func TestInvalidCapacityWriter(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	var out bytes.Buffer
	_, err := NewWriter(construction, nonce, buffer.New(construction.Overhead()), &out)
	if err != ErrInvalidCapacity {
		t.Errorf("err = %v, want ErrInvalidCapacity", err)
	}
}

func TestInvalidCapacityReader(t *testing.T) {
	construction := newBE32(t)
	_, err := NewReader(construction, buffer.New(0), bytes.NewReader(nil))
	if err != ErrInvalidCapacity {
		t.Errorf("err = %v, want ErrInvalidCapacity", err)
	}
}

func TestLastInvocationUniqueness(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	var out bytes.Buffer
	w, err := NewWriter(construction, nonce, buffer.New(128), &out)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write([]byte("partial")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// Further Flush/Close calls must be idempotent: no second
	// EncryptLast invocation, no additional bytes on the wire.
	lenAfterFirstFlush := out.Len()
	if err := w.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if out.Len() != lenAfterFirstFlush {
		t.Errorf("second Flush emitted %d extra bytes", out.Len()-lenAfterFirstFlush)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if out.Len() != lenAfterFirstFlush {
		t.Errorf("Close after Flush emitted %d extra bytes", out.Len()-lenAfterFirstFlush)
	}
}

func TestWriteAfterFinalizationFails(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	var out bytes.Buffer
	w, err := NewWriter(construction, nonce, buffer.New(128), &out)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Fatal("expected write after finalization to fail")
	}
}

func TestIntoInnerReturnsTransport(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	var out bytes.Buffer
	w, err := NewWriter(construction, nonce, buffer.New(128), &out)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write([]byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dst, err := w.IntoInner()
	if err != nil {
		t.Fatalf("IntoInner: %v", err)
	}
	if dst != &out {
		t.Error("IntoInner did not return the original transport")
	}
}

// failingWriter fails every write after the first n bytes accepted,
// to simulate a transport error surfacing mid-finalization.
type failingWriter struct {
	n int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) > f.n {
		p = p[:f.n]
	}
	f.n -= len(p)
	return len(p), nil
}

func TestIntoInnerFailurePreservesWriter(t *testing.T) {
	construction := newBE32(t)
	nonce := make([]byte, construction.NonceSize())
	dst := &failingWriter{n: 0}
	w, err := NewWriter(construction, nonce, buffer.New(128), dst)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write([]byte("partial")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, err = w.IntoInner()
	if err == nil {
		t.Fatal("expected IntoInner to fail when the transport rejects the nonce write")
	}
	inner, ok := err.(*IntoInnerError)
	if !ok {
		t.Fatalf("error = %T, want *IntoInnerError", err)
	}
	if inner.Writer != w {
		t.Error("IntoInnerError did not carry the original Writer back to the caller")
	}
}

func TestLE31RoundTrip(t *testing.T) {
	construction, err := NewChaCha20Poly1305LE31(testKey())
	if err != nil {
		t.Fatalf("NewChaCha20Poly1305LE31: %v", err)
	}
	nonce := make([]byte, construction.NonceSize())
	ciphertext := encryptAll(t, construction, nonce, 128, []byte(loremIpsum))

	construction2, err := NewChaCha20Poly1305LE31(testKey())
	if err != nil {
		t.Fatalf("NewChaCha20Poly1305LE31: %v", err)
	}
	got, err := decryptAll(t, construction2, 128, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != loremIpsum {
		t.Error("LE31 round trip mismatch")
	}
}
