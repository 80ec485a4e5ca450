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
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// ServiceStatus is the reachability state of a registration.
type ServiceStatus string

const (
	ServiceActive   ServiceStatus = "active"
	ServiceInactive ServiceStatus = "inactive"
)

// mirrorCallTimeout bounds each mirror notification. The mirror is
// best-effort; a hung backend must not block Register or Unregister.
const mirrorCallTimeout = 5 * time.Second

// ServiceRegistration records where a logical service can be reached.
type ServiceRegistration struct {
	Name         string        `json:"name"`
	Endpoint     string        `json:"endpoint"`
	Status       ServiceStatus `json:"status"`
	RegisteredAt time.Time     `json:"registered_at"`
}

// Mirror is an optional external projection of the registration table.
// Implementations are best-effort: errors are logged by the registry and
// never surfaced to callers.
type Mirror interface {
	ServiceRegistered(ctx context.Context, reg ServiceRegistration) error
	ServiceUnregistered(ctx context.Context, name string) error
}

// ServiceRegistry tracks which logical services are currently reachable
// and at what address. At most one registration exists per name;
// re-registering a name overwrites in place.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]ServiceRegistration
	mirror   Mirror
}

// NewServiceRegistry creates an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]ServiceRegistration),
	}
}

// SetMirror attaches a best-effort external projection. Pass nil to detach.
func (r *ServiceRegistry) SetMirror(m Mirror) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirror = m
}

// Register inserts or overwrites the registration for name with status
// active and a fresh registration timestamp. It always succeeds.
func (r *ServiceRegistry) Register(name, endpoint string) ServiceRegistration {
	reg := ServiceRegistration{
		Name:         name,
		Endpoint:     endpoint,
		Status:       ServiceActive,
		RegisteredAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.services[name] = reg
	mirror := r.mirror
	r.mu.Unlock()

	if mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorCallTimeout)
		defer cancel()
		if err := mirror.ServiceRegistered(ctx, reg); err != nil {
			log.Printf("[Registry] Mirror update failed for %s: %v", name, err)
		}
	}

	return reg
}

// Unregister removes the registration if present. Removing an absent name
// is a no-op, not an error.
func (r *ServiceRegistry) Unregister(name string) {
	r.mu.Lock()
	_, existed := r.services[name]
	delete(r.services, name)
	mirror := r.mirror
	r.mu.Unlock()

	if existed && mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorCallTimeout)
		defer cancel()
		if err := mirror.ServiceUnregistered(ctx, name); err != nil {
			log.Printf("[Registry] Mirror removal failed for %s: %v", name, err)
		}
	}
}

// Lookup returns the registration for name, or ErrDestinationNotFound.
// The returned value is a copy; callers cannot mutate registry state.
func (r *ServiceRegistry) Lookup(name string) (ServiceRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.services[name]
	if !exists {
		return ServiceRegistration{}, fmt.Errorf("service %q: %w", name, ErrDestinationNotFound)
	}
	return reg, nil
}

// Has reports whether name is currently registered.
func (r *ServiceRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.services[name]
	return exists
}

// Snapshot returns a copy of the full registration table. Mutating the
// returned map has no effect on the registry.
func (r *ServiceRegistry) Snapshot() map[string]ServiceRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ServiceRegistration, len(r.services))
	for name, reg := range r.services {
		out[name] = reg
	}
	return out
}

// Count returns the number of registered services.
func (r *ServiceRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}
