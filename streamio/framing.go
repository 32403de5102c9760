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

import "encoding/binary"

// lengthPrefixSize is the size, in bytes, of the big-endian chunk
// length prefix that precedes every ciphertext chunk on the wire.
const lengthPrefixSize = 4

// maxChunkLength is the largest declared chunk length the framing
// format can express, matching the 4-byte length prefix.
const maxChunkLength = 1<<32 - 1

// putLength encodes n as a 4-byte big-endian chunk length prefix.
func putLength(dst []byte, n int) {
	binary.BigEndian.PutUint32(dst, uint32(n))
}

// readLength decodes a 4-byte big-endian chunk length prefix.
func readLength(src []byte) int {
	return int(binary.BigEndian.Uint32(src))
}
