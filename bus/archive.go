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
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	defaultArchiveBatchSize = 100
	archiveFlushInterval    = 5 * time.Second
)

// PostgresArchiver is a durable sink for audit snapshots. Entries are
// buffered and written in batches; the in-memory AuditLog stays
// authoritative for Recent and TotalCount, so a slow or unavailable
// database never stalls routing.
type PostgresArchiver struct {
	db        *sql.DB
	batchSize int

	mu      sync.Mutex
	pending []Message

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewPostgresArchiver connects to databaseURL, creates the audit table if
// needed, and starts the periodic flush worker.
func NewPostgresArchiver(databaseURL string) (*PostgresArchiver, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	if err := createAuditTable(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newPostgresArchiver(db, defaultArchiveBatchSize), nil
}

// newPostgresArchiver wraps an existing handle; tests supply sqlmock here.
func newPostgresArchiver(db *sql.DB, batchSize int) *PostgresArchiver {
	a := &PostgresArchiver{
		db:        db,
		batchSize: batchSize,
		pending:   make([]Message, 0, batchSize),
		ticker:    time.NewTicker(archiveFlushInterval),
		done:      make(chan struct{}),
	}

	a.wg.Add(1)
	go a.periodicFlush()

	return a
}

// Archive buffers one snapshot, flushing when the batch is full.
func (a *PostgresArchiver) Archive(msg Message) {
	a.mu.Lock()
	a.pending = append(a.pending, msg)
	full := len(a.pending) >= a.batchSize
	a.mu.Unlock()

	if full {
		a.Flush()
	}
}

// Flush writes all buffered snapshots.
func (a *PostgresArchiver) Flush() {
	a.mu.Lock()
	if len(a.pending) == 0 {
		a.mu.Unlock()
		return
	}
	batch := a.pending
	a.pending = make([]Message, 0, a.batchSize)
	a.mu.Unlock()

	if err := a.write(batch); err != nil {
		log.Printf("[Archive] Failed to write audit batch of %d: %v", len(batch), err)
	}
}

// Close stops the flush worker, flushes remaining entries, and closes the
// database handle.
func (a *PostgresArchiver) Close() error {
	a.ticker.Stop()
	close(a.done)
	a.wg.Wait()
	a.Flush()
	return a.db.Close()
}

func (a *PostgresArchiver) periodicFlush() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ticker.C:
			a.Flush()
		case <-a.done:
			return
		}
	}
}

func (a *PostgresArchiver) write(batch []Message) error {
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO bus_audit_log (
			message_id, wire_id, from_service, to_service, operation,
			payload, message_timestamp, status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, msg := range batch {
		payloadJSON, _ := json.Marshal(msg.Payload)

		if _, err := stmt.Exec(
			msg.ID,
			msg.WireID,
			msg.From,
			msg.To,
			msg.Operation,
			payloadJSON,
			msg.Timestamp,
			string(msg.Status),
			msg.Error,
		); err != nil {
			log.Printf("[Archive] Failed to insert audit entry %s: %v", msg.WireID, err)
		}
	}

	return tx.Commit()
}

// createAuditTable creates the archive table if it does not exist.
func createAuditTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS bus_audit_log (
		seq BIGSERIAL PRIMARY KEY,
		message_id BIGINT NOT NULL,
		wire_id VARCHAR(64) NOT NULL,
		from_service VARCHAR(255) NOT NULL,
		to_service VARCHAR(255) NOT NULL,
		operation VARCHAR(255) NOT NULL,
		payload JSONB,
		message_timestamp TIMESTAMP NOT NULL,
		status VARCHAR(32) NOT NULL,
		error_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bus_audit_log_wire_id ON bus_audit_log(wire_id);
	CREATE INDEX IF NOT EXISTS idx_bus_audit_log_timestamp ON bus_audit_log(message_timestamp);
	CREATE INDEX IF NOT EXISTS idx_bus_audit_log_status ON bus_audit_log(status);
	`

	_, err := db.Exec(query)
	return err
}
