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


package queue

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Broker errors
var (
	// ErrBrokerClosed indicates an operation against a closed broker.
	ErrBrokerClosed = errors.New("broker closed")

	// ErrAlreadyAcked indicates a second terminal decision on a message.
	ErrAlreadyAcked = errors.New("message already acknowledged")
)

// Msg is one delivered message. Exactly one of Ack, Nak, or Term must be
// called per delivery; the broker redelivers on Nak after the given delay
// and on visibility timeout.
type Msg interface {
	// Subject the message was published to.
	Subject() string
	// Data is the raw payload.
	Data() []byte
	// Deliveries counts attempts including the current one.
	Deliveries() int
	// Ack removes the message from the pending set.
	Ack(ctx context.Context) error
	// Nak schedules a redelivery after delay.
	Nak(ctx context.Context, delay time.Duration) error
	// Term removes the message without successful completion, used after
	// dead-lettering.
	Term(ctx context.Context) error
}

// Consumer is a durable pull subscription over a subject filter. Fetch
// returns at most max messages that are currently visible; it returns an
// empty slice, not an error, when nothing is pending.
type Consumer interface {
	Fetch(ctx context.Context, max int) ([]Msg, error)
	Close() error
}

// PublishOptions control retention and delivery ordering of one message.
type PublishOptions struct {
	// MaxAge bounds how long the message may stay undelivered; zero means
	// no expiry.
	MaxAge time.Duration
	// Priority ranks the message against those pending on other subjects
	// when a consumer fetches fewer messages than are visible. Within one
	// subject publish order always wins.
	Priority int
}

// Broker is the durable message transport the pipeline runs against.
// Within one subject, delivery order follows publish order; across subjects
// higher-priority messages are delivered first.
type Broker interface {
	// Publish appends a message to the stream under subject.
	Publish(ctx context.Context, subject string, data []byte, opts PublishOptions) error
	// Subscribe creates or resumes the named durable consumer over a
	// subject filter (wildcards per MatchSubject).
	Subscribe(ctx context.Context, consumer, filterSubject string) (Consumer, error)
	Close() error
}

// MatchSubject reports whether a dot-separated subject matches a filter.
// "*" matches exactly one token, a trailing ">" matches one or more
// remaining tokens.
func MatchSubject(filter, subject string) bool {
	ft := strings.Split(filter, ".")
	st := strings.Split(subject, ".")

	for i, f := range ft {
		if f == ">" {
			return i == len(ft)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if f != "*" && f != st[i] {
			return false
		}
	}
	return len(st) == len(ft)
}
