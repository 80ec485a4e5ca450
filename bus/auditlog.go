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

import "sync"

// DefaultRecentLimit caps Recent when the caller does not specify a limit.
const DefaultRecentLimit = 50

// Archiver is an optional durable sink for audit entries. Archive must not
// block the caller for long; implementations buffer internally.
type Archiver interface {
	Archive(msg Message)
}

// AuditLog is an append-only, in-memory record of every routed message.
// Two snapshots are appended per message: the initial routing state and
// the terminal state. Previously appended entries are never mutated.
type AuditLog struct {
	mu       sync.Mutex
	entries  []Message
	archiver Archiver
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// SetArchiver attaches a durable sink receiving every appended snapshot.
// Pass nil to detach.
func (l *AuditLog) SetArchiver(a Archiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.archiver = a
}

// Append records an immutable copy of the message snapshot.
func (l *AuditLog) Append(msg Message) {
	snapshot := msg.clone()

	l.mu.Lock()
	l.entries = append(l.entries, snapshot)
	archiver := l.archiver
	l.mu.Unlock()

	if archiver != nil {
		archiver.Archive(snapshot)
	}
}

// Recent returns at most limit entries, the chronologically last ones
// appended, in chronological order. A limit <= 0 means DefaultRecentLimit.
// The returned slice and its payloads are copies; repeated calls are
// idempotent observations, not consuming reads.
func (l *AuditLog) Recent(limit int) []Message {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := len(l.entries) - limit
	if start < 0 {
		start = 0
	}

	out := make([]Message, 0, len(l.entries)-start)
	for _, entry := range l.entries[start:] {
		out = append(out, entry.clone())
	}
	return out
}

// TotalCount returns the number of snapshots ever appended. It is
// monotonically non-decreasing.
func (l *AuditLog) TotalCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.entries))
}
