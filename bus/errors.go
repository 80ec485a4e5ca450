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
	"errors"
	"fmt"
)

// Sentinel errors for misconfiguration failures. These indicate a setup
// problem rather than a transient one and are never retried.
var (
	// ErrDestinationNotFound means the destination service has no active
	// registration. The transport is never consulted in this case.
	ErrDestinationNotFound = errors.New("destination not found")

	// ErrTransformationFailed means a registered payload transformer
	// failed (panicked) while reshaping the outbound payload.
	ErrTransformationFailed = errors.New("transformation failed")
)

// DeliveryError is a transport-reported failure. The reason is free text
// surfaced verbatim from whatever delivery mechanism is in use.
type DeliveryError struct {
	Endpoint string
	Reason   string
}

func (e *DeliveryError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("delivery failed: %s", e.Reason)
	}
	return fmt.Sprintf("delivery to %s failed: %s", e.Endpoint, e.Reason)
}

// NewDeliveryError wraps a transport failure reason.
func NewDeliveryError(endpoint, reason string) *DeliveryError {
	return &DeliveryError{Endpoint: endpoint, Reason: reason}
}

// AsDeliveryError unwraps err to a *DeliveryError if one is in the chain.
func AsDeliveryError(err error) (*DeliveryError, bool) {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
