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
	"sort"
	"sync"
)

// Transformer reshapes a payload crossing from one service's format to
// another's. Transformers must be pure functions with no side effects;
// behavior on a payload shape outside their documented input is the
// caller's responsibility, not the registry's.
type Transformer func(payload map[string]interface{}) map[string]interface{}

// TransformerRegistry holds payload converters keyed by the ordered
// (source, destination) service pair. At most one transformer exists per
// pair; re-registration replaces the prior one.
type TransformerRegistry struct {
	mu           sync.RWMutex
	transformers map[string]Transformer
}

// NewTransformerRegistry creates an empty transformer registry.
func NewTransformerRegistry() *TransformerRegistry {
	return &TransformerRegistry{
		transformers: make(map[string]Transformer),
	}
}

// transformerKey renders the ordered pair. The "from->to" form is the
// key format observers see in status reports.
func transformerKey(from, to string) string {
	return fmt.Sprintf("%s->%s", from, to)
}

// Register binds fn to the ordered (from, to) pair, replacing any
// existing transformer for that pair.
func (t *TransformerRegistry) Register(from, to string, fn Transformer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transformers[transformerKey(from, to)] = fn
}

// Lookup returns the transformer for the ordered pair, if any.
func (t *TransformerRegistry) Lookup(from, to string) (Transformer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, exists := t.transformers[transformerKey(from, to)]
	return fn, exists
}

// Apply runs the transformer registered for (from, to) on payload.
// If no transformer is registered the payload is returned unchanged.
func (t *TransformerRegistry) Apply(from, to string, payload map[string]interface{}) map[string]interface{} {
	fn, exists := t.Lookup(from, to)
	if !exists {
		return payload
	}
	return fn(payload)
}

// Keys returns the registered pair keys in sorted order.
func (t *TransformerRegistry) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.transformers))
	for key := range t.transformers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of registered transformers.
func (t *TransformerRegistry) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.transformers)
}

// === Preset transformers ===
//
// Functions cannot cross a JSON boundary, so the management API registers
// transformers by preset name. Programmatic callers register arbitrary
// Transformer funcs directly.

// UserToCustomer reshapes an auth-service user payload into the customer
// format the order service expects.
func UserToCustomer(payload map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"customer_id":    payload["user_id"],
		"customer_name":  payload["username"],
		"customer_email": payload["email"],
	}
}

// OrderToPayment reshapes an order payload into the transaction format
// the payment service expects. Order documents carry the charge as
// "total"; payloads already shaped for payment carry it as "amount" —
// both must survive the reshape.
func OrderToPayment(payload map[string]interface{}) map[string]interface{} {
	amount := payload["total"]
	if amount == nil {
		amount = payload["amount"]
	}
	return map[string]interface{}{
		"transaction_id": payload["order_id"],
		"amount":         amount,
		"currency":       "BRL",
	}
}

var presets = map[string]Transformer{
	"user-to-customer": UserToCustomer,
	"order-to-payment": OrderToPayment,
}

// Preset returns a named preset transformer.
func Preset(name string) (Transformer, bool) {
	fn, exists := presets[name]
	return fn, exists
}

// PresetNames returns the available preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
