// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import "encoding/binary"

// Key prefixes for different data types
const (
	messagePrefix  = "msg"
	statePrefix    = "dlv"
	messageSeqName = "msgseq"
)

// makeMessageKey generates a key for a stored message by sequence number.
// Format: prefix:seq. The sequence is written BigEndian so iteration in key
// order yields publish order.
func makeMessageKey(seq uint64) []byte {
	prefix := messagePrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeStateKey generates a composite key for a consumer's delivery state of
// one message. Format: prefix:consumer:seq.
func makeStateKey(consumer string, seq uint64) []byte {
	prefix := statePrefix + ":" + consumer + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// messageKeySeq extracts the sequence number from a message key.
func messageKeySeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
