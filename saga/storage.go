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

package saga

import (
	"fmt"
	"sync"
)

// Storage persists workflow execution state. Executions are
// process-lifetime state; durability across restarts is out of scope.
// Implementations must store and return snapshots: the engine keeps
// mutating the execution it passes in, and readers may be concurrent
// HTTP handlers.
type Storage interface {
	SaveExecution(execution *Execution) error
	GetExecution(id string) (*Execution, error)
	UpdateExecution(execution *Execution) error
	RecentExecutions(limit int) []*Execution
}

// InMemoryStorage is a thread-safe map-backed Storage. It holds deep
// copies, never the engine's live executions.
type InMemoryStorage struct {
	mu         sync.RWMutex
	executions map[string]*Execution
	order      []string // insertion order, for RecentExecutions
}

// NewInMemoryStorage creates an empty storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		executions: make(map[string]*Execution),
	}
}

func (s *InMemoryStorage) SaveExecution(execution *Execution) error {
	snapshot := execution.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.executions[execution.ID]; !exists {
		s.order = append(s.order, execution.ID)
	}
	s.executions[execution.ID] = snapshot
	return nil
}

func (s *InMemoryStorage) GetExecution(id string) (*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	execution, exists := s.executions[id]
	if !exists {
		return nil, fmt.Errorf("execution not found: %s", id)
	}
	return execution.snapshot(), nil
}

func (s *InMemoryStorage) UpdateExecution(execution *Execution) error {
	snapshot := execution.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execution.ID] = snapshot
	return nil
}

// RecentExecutions returns at most limit executions, newest first.
func (s *InMemoryStorage) RecentExecutions(limit int) []*Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}

	out := make([]*Execution, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.executions[s.order[i]].snapshot())
	}
	return out
}
