// Copyright 2026 FluxBus
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

package bus

import (
	"fmt"
	"time"
)

// Status is the routing state of a message envelope.
type Status string

const (
	// StatusRouting is the initial state of every accepted message.
	StatusRouting Status = "routing"
	// StatusDelivered is the terminal state of a successfully delivered message.
	StatusDelivered Status = "delivered"
	// StatusError is the terminal state of a message that failed resolution,
	// transformation, or delivery.
	StatusError Status = "error"
)

// Message is the ESB envelope. A message transitions status at most twice:
// routing is the initial state, and the terminal state is exactly one of
// delivered or error.
type Message struct {
	ID        int64                  `json:"id"`
	WireID    string                 `json:"wire_id"`
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	Operation string                 `json:"operation"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
	Status    Status                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
}

// WireID renders a numeric message ID in the on-the-wire form "msg-<n>".
func WireID(id int64) string {
	return fmt.Sprintf("msg-%d", id)
}

// clone returns a copy of the message with its own payload map, so audit
// snapshots are immune to later mutation of the caller's payload.
func (m Message) clone() Message {
	c := m
	c.Payload = clonePayload(m.Payload)
	return c
}

func clonePayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
