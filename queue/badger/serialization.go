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

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// envelope is the stored form of one published message.
type envelope struct {
	Seq         uint64
	Subject     string
	Data        []byte
	PublishedAt int64 // unix microseconds
	Priority    int
}

// deliveryState tracks one consumer's handling of one message. Completed
// messages are deleted outright, so only in-flight state is recorded.
type deliveryState struct {
	Deliveries int
	VisibleAt  int64 // unix microseconds; redelivery is allowed at or after
}

type envelopeSer struct{}

// envelopeMUS serializes stored messages in MUS format.
var envelopeMUS = envelopeSer{}

func (envelopeSer) Marshal(e envelope, bs []byte) (n int) {
	n = varint.Uint64.Marshal(e.Seq, bs)
	n += ord.String.Marshal(e.Subject, bs[n:])
	n += ord.ByteSlice.Marshal(e.Data, bs[n:])
	n += varint.Int64.Marshal(e.PublishedAt, bs[n:])
	n += varint.Int.Marshal(e.Priority, bs[n:])
	return
}

func (envelopeSer) Unmarshal(bs []byte) (e envelope, n int, err error) {
	var n1 int
	e.Seq, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	e.Subject, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Data, n1, err = ord.ByteSlice.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.PublishedAt, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Priority, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	return
}

func (envelopeSer) Size(e envelope) (size int) {
	size = varint.Uint64.Size(e.Seq)
	size += ord.String.Size(e.Subject)
	size += ord.ByteSlice.Size(e.Data)
	size += varint.Int64.Size(e.PublishedAt)
	size += varint.Int.Size(e.Priority)
	return
}

type deliveryStateSer struct{}

// deliveryStateMUS serializes per-consumer delivery state in MUS format.
var deliveryStateMUS = deliveryStateSer{}

func (deliveryStateSer) Marshal(s deliveryState, bs []byte) (n int) {
	n = varint.Int.Marshal(s.Deliveries, bs)
	n += varint.Int64.Marshal(s.VisibleAt, bs[n:])
	return
}

func (deliveryStateSer) Unmarshal(bs []byte) (s deliveryState, n int, err error) {
	var n1 int
	s.Deliveries, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	s.VisibleAt, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	return
}

func (deliveryStateSer) Size(s deliveryState) (size int) {
	size = varint.Int.Size(s.Deliveries)
	size += varint.Int64.Size(s.VisibleAt)
	return
}

// marshalEnvelope serializes an envelope to bytes.
func marshalEnvelope(e envelope) []byte {
	buf := make([]byte, envelopeMUS.Size(e))
	envelopeMUS.Marshal(e, buf)
	return buf
}

// unmarshalEnvelope deserializes an envelope from bytes.
func unmarshalEnvelope(data []byte) (envelope, error) {
	e, _, err := envelopeMUS.Unmarshal(data)
	return e, err
}

// marshalDeliveryState serializes a delivery state to bytes.
func marshalDeliveryState(s deliveryState) []byte {
	buf := make([]byte, deliveryStateMUS.Size(s))
	deliveryStateMUS.Marshal(s, buf)
	return buf
}

// unmarshalDeliveryState deserializes a delivery state from bytes.
func unmarshalDeliveryState(data []byte) (deliveryState, error) {
	s, _, err := deliveryStateMUS.Unmarshal(data)
	return s, err
}
