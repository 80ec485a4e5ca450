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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"strings"
	"testing"
)

// TestNew tests logger initialization
func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		component      string
		instanceID     string
		expectedComp   string
		expectedInstID string
	}{
		{
			name:           "with instance ID set",
			component:      "bus",
			instanceID:     "instance-123",
			expectedComp:   "bus",
			expectedInstID: "instance-123",
		},
		{
			name:           "without instance ID",
			component:      "saga",
			instanceID:     "",
			expectedComp:   "saga",
			expectedInstID: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.instanceID != "" {
				if err := os.Setenv("INSTANCE_ID", tt.instanceID); err != nil {
					t.Fatalf("Failed to set INSTANCE_ID: %v", err)
				}
				defer func() { _ = os.Unsetenv("INSTANCE_ID") }()
			} else {
				_ = os.Unsetenv("INSTANCE_ID")
			}

			l := New(tt.component)
			if l.Component != tt.expectedComp {
				t.Errorf("Expected component %s, got %s", tt.expectedComp, l.Component)
			}
			if l.InstanceID != tt.expectedInstID {
				t.Errorf("Expected instance ID %s, got %s", tt.expectedInstID, l.InstanceID)
			}
		})
	}
}

// TestLogOutput verifies the structured JSON shape of emitted entries
func TestLogOutput(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	log.SetFlags(0)

	l := New("bus")
	l.Info("req-1", "Routing message", map[string]interface{}{
		"from": "orchestrator",
		"to":   "order-service",
	})

	line := strings.TrimSpace(buf.String())
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Log line is not valid JSON: %v\n%s", err, line)
	}

	if entry.Level != INFO {
		t.Errorf("Expected level INFO, got %s", entry.Level)
	}
	if entry.Component != "bus" {
		t.Errorf("Expected component bus, got %s", entry.Component)
	}
	if entry.RequestID != "req-1" {
		t.Errorf("Expected request ID req-1, got %s", entry.RequestID)
	}
	if entry.Fields["to"] != "order-service" {
		t.Errorf("Expected field to=order-service, got %v", entry.Fields["to"])
	}
}

// TestErrorWithErr ensures the error string is carried as a field
func TestErrorWithErr(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	log.SetFlags(0)

	l := New("server")
	l.ErrorWithErr("req-2", "Delivery failed", errForTest("connection refused"), nil)

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("Log line is not valid JSON: %v", err)
	}

	if entry.Fields["error"] != "connection refused" {
		t.Errorf("Expected error field, got %v", entry.Fields["error"])
	}
}

type errForTest string

func (e errForTest) Error() string { return string(e) }
