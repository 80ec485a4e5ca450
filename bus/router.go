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
	"sync/atomic"
	"time"

	"fluxbus/platform/shared/logger"
)

// Transport is the delivery capability the router consumes. The router
// does not know or care whether delivery is a network call, an in-process
// call, or a test stub. The returned payload, when non-nil, is the
// destination's response. Deliver is the only point a Send may block;
// timeouts and cancellation arrive through ctx and are reported back as
// delivery errors.
type Transport interface {
	Deliver(ctx context.Context, endpoint, operation string, payload map[string]interface{}) (map[string]interface{}, error)
}

// SendRequest is a logical send through the bus.
type SendRequest struct {
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	Operation string                 `json:"operation"`
	Payload   map[string]interface{} `json:"payload"`
	// SkipTransform disables payload transformation for this send.
	// The zero value applies any registered transformer.
	SkipTransform bool `json:"skip_transform,omitempty"`
}

// SendResult is what the router reports back to the caller. On success
// Payload carries the destination's response when the transport provided
// one, otherwise the (possibly transformed) outbound payload.
type SendResult struct {
	MessageID string                 `json:"message_id"`
	Status    Status                 `json:"status"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Router is the ESB core. One router exists per process; construct it
// explicitly and hand the same instance to every caller.
type Router struct {
	services     *ServiceRegistry
	transformers *TransformerRegistry
	audit        *AuditLog
	transport    Transport
	log          *logger.Logger

	nextID int64 // atomic; last assigned message ID
}

// NewRouter wires the router to its three shared structures and the
// delivery transport.
func NewRouter(services *ServiceRegistry, transformers *TransformerRegistry, audit *AuditLog, transport Transport) *Router {
	return &Router{
		services:     services,
		transformers: transformers,
		audit:        audit,
		transport:    transport,
		log:          logger.New("bus"),
	}
}

// Services returns the registry the router resolves destinations against.
func (r *Router) Services() *ServiceRegistry { return r.services }

// Transformers returns the transformer registry the router consults.
func (r *Router) Transformers() *TransformerRegistry { return r.transformers }

// Audit returns the audit log the router writes to.
func (r *Router) Audit() *AuditLog { return r.audit }

// Send routes one message through the bus:
//
//  1. allocate a fresh ID and append the routing snapshot to the audit log
//  2. resolve the destination via the service registry
//  3. apply any registered (from, to) transformer unless opted out
//  4. delegate to the transport
//  5. append the terminal snapshot and report the outcome
//
// On failure the returned result is still populated with the message ID
// and terminal status alongside a non-nil error.
func (r *Router) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	id := atomic.AddInt64(&r.nextID, 1)
	msg := Message{
		ID:        id,
		WireID:    WireID(id),
		From:      req.From,
		To:        req.To,
		Operation: req.Operation,
		Payload:   req.Payload,
		Timestamp: time.Now().UTC(),
		Status:    StatusRouting,
	}

	// First audit write: establishes a trail even for messages that will
	// fail resolution.
	r.audit.Append(msg)
	promMessagesRouted.Inc()

	r.log.Info(msg.WireID, "Routing message", map[string]interface{}{
		"from":      req.From,
		"to":        req.To,
		"operation": req.Operation,
	})

	// Resolution is the only pre-transformation validation: unknown
	// operations are the destination's concern, not the router's.
	reg, err := r.services.Lookup(req.To)
	if err != nil {
		return r.fail(msg, failReasonNotFound, ErrDestinationNotFound.Error(), err)
	}

	outbound := req.Payload
	if !req.SkipTransform {
		transformed, terr := r.transform(req.From, req.To, outbound)
		if terr != nil {
			return r.fail(msg, failReasonTransform, ErrTransformationFailed.Error(), terr)
		}
		outbound = transformed
	}

	start := time.Now()
	response, err := r.transport.Deliver(ctx, reg.Endpoint, req.Operation, outbound)
	promDeliveryDuration.WithLabelValues(req.To).Observe(time.Since(start).Seconds())

	if err != nil {
		derr, ok := AsDeliveryError(err)
		if !ok {
			derr = NewDeliveryError(reg.Endpoint, err.Error())
		}
		return r.fail(msg, failReasonDelivery, derr.Reason, derr)
	}

	msg.Status = StatusDelivered
	msg.Payload = outbound
	r.audit.Append(msg)
	promMessagesDelivered.Inc()

	result := &SendResult{
		MessageID: msg.WireID,
		Status:    StatusDelivered,
		Payload:   outbound,
	}
	if response != nil {
		result.Payload = response
	}
	return result, nil
}

// transform applies the registered transformer, converting a panic inside
// the transformer into ErrTransformationFailed.
func (r *Router) transform(from, to string, payload map[string]interface{}) (out map[string]interface{}, err error) {
	fn, exists := r.transformers.Lookup(from, to)
	if !exists {
		return payload, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: transformer %s panicked: %v", ErrTransformationFailed, transformerKey(from, to), rec)
		}
	}()

	out = fn(payload)
	promTransformsApplied.Inc()
	return out, nil
}

// fail records the terminal error snapshot and shapes the error result.
func (r *Router) fail(msg Message, reason, errText string, err error) (*SendResult, error) {
	msg.Status = StatusError
	msg.Error = errText
	r.audit.Append(msg)
	promMessagesFailed.WithLabelValues(reason).Inc()

	r.log.ErrorWithErr(msg.WireID, "Message routing failed", err, map[string]interface{}{
		"from":      msg.From,
		"to":        msg.To,
		"operation": msg.Operation,
		"reason":    reason,
	})

	return &SendResult{
		MessageID: msg.WireID,
		Status:    StatusError,
		Error:     errText,
	}, err
}
