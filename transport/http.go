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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fluxbus/platform/bus"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPTransport delivers operations to remote services over HTTP. The
// destination endpoint is the service's base URL; an operation is posted
// as JSON to <endpoint>/operations/<operation> and the response body, when
// it is a JSON object, becomes the delivered payload.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport with the default request timeout.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// NewHTTPTransportWithClient creates a transport with a caller-supplied
// client, for custom timeouts or test servers.
func NewHTTPTransportWithClient(client *http.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

// Deliver posts the payload to the destination endpoint. Timeouts and
// cancellation propagate through ctx; every failure is reported as a
// *bus.DeliveryError carrying the transport-observed reason.
func (t *HTTPTransport) Deliver(ctx context.Context, endpoint, operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, bus.NewDeliveryError(endpoint, fmt.Sprintf("failed to encode payload: %v", err))
	}

	url := fmt.Sprintf("%s/operations/%s", endpoint, operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, bus.NewDeliveryError(endpoint, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, bus.NewDeliveryError(endpoint, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, bus.NewDeliveryError(endpoint,
			fmt.Sprintf("operation %s failed with status %d: %s", operation, resp.StatusCode, string(respBody)))
	}

	var response map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		if err == io.EOF {
			// Empty body is a valid acknowledgement
			return nil, nil
		}
		return nil, bus.NewDeliveryError(endpoint, fmt.Sprintf("failed to decode response: %v", err))
	}

	return response, nil
}
