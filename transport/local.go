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

package transport

import (
	"context"
	"fmt"
	"sync"

	"fluxbus/platform/bus"
)

// Handler services one operation for an in-process endpoint.
type Handler func(operation string, payload map[string]interface{}) (map[string]interface{}, error)

// LocalTransport dispatches deliveries to in-process handlers keyed by
// endpoint. It backs demo mode and tests; the router cannot distinguish
// it from a network transport.
type LocalTransport struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewLocalTransport creates an empty local transport.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{
		handlers: make(map[string]Handler),
	}
}

// Handle binds an endpoint to a handler, replacing any existing binding.
func (t *LocalTransport) Handle(endpoint string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[endpoint] = h
}

// Deliver invokes the handler bound to endpoint. An unbound endpoint or a
// handler error is reported as a *bus.DeliveryError, like any unreachable
// or failing remote service.
func (t *LocalTransport) Deliver(ctx context.Context, endpoint, operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, bus.NewDeliveryError(endpoint, ctx.Err().Error())
	default:
	}

	t.mu.RLock()
	handler, exists := t.handlers[endpoint]
	t.mu.RUnlock()

	if !exists {
		return nil, bus.NewDeliveryError(endpoint, fmt.Sprintf("no handler bound to endpoint %s", endpoint))
	}

	response, err := handler(operation, payload)
	if err != nil {
		if _, ok := bus.AsDeliveryError(err); ok {
			return nil, err
		}
		return nil, bus.NewDeliveryError(endpoint, err.Error())
	}
	return response, nil
}
