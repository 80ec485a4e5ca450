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

package server

import (
	"fmt"
	"sync"

	"fluxbus/platform/bus"
	"fluxbus/platform/saga"
	"fluxbus/platform/transport"
)

// Demo endpoints bound on the in-process transport.
const (
	demoAuthEndpoint    = "local://auth-service"
	demoProductEndpoint = "local://product-service"
	demoOrderEndpoint   = "local://order-service"
	demoPaymentEndpoint = "local://payment-service"
)

// DemoServices emulates the four business services in-process, with just
// enough state to run both order workflows end to end without any
// network.
type DemoServices struct {
	mu        sync.Mutex
	users     map[string]bool
	stock     map[string]int
	prices    map[string]float64
	orders    map[string]map[string]interface{}
	payments  map[string]string // order ID -> paid | refunded
	nextOrder int
}

// NewDemoServices seeds a small catalog and user base.
func NewDemoServices() *DemoServices {
	return &DemoServices{
		users: map[string]bool{"u1": true, "u2": true, "u3": true},
		stock: map[string]int{"p1": 50, "p2": 25, "p3": 100, "p4": 15},
		prices: map[string]float64{
			"p1": 1299.99,
			"p2": 2499.99,
			"p3": 199.99,
			"p4": 1899.99,
		},
		orders:   make(map[string]map[string]interface{}),
		payments: make(map[string]string),
	}
}

// Transport returns a local transport with all four services bound.
func (d *DemoServices) Transport() *transport.LocalTransport {
	t := transport.NewLocalTransport()
	t.Handle(demoAuthEndpoint, d.handleAuth)
	t.Handle(demoProductEndpoint, d.handleProduct)
	t.Handle(demoOrderEndpoint, d.handleOrder)
	t.Handle(demoPaymentEndpoint, d.handlePayment)
	return t
}

// RegisterWith registers the demo endpoints on the router, plus the
// order-to-payment transformer the payment step expects.
func (d *DemoServices) RegisterWith(router *bus.Router) {
	router.Services().Register(saga.AuthService, demoAuthEndpoint)
	router.Services().Register(saga.ProductService, demoProductEndpoint)
	router.Services().Register(saga.OrderService, demoOrderEndpoint)
	router.Services().Register(saga.PaymentService, demoPaymentEndpoint)
	router.Transformers().Register(saga.SenderName, saga.PaymentService, bus.OrderToPayment)
}

func (d *DemoServices) handleAuth(operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	switch operation {
	case "validate_user":
		userID := fmt.Sprintf("%v", payload["user_id"])
		d.mu.Lock()
		valid := d.users[userID]
		d.mu.Unlock()
		if !valid {
			return nil, fmt.Errorf("unknown user %s", userID)
		}
		return map[string]interface{}{"user_id": userID, "valid": true}, nil
	default:
		return nil, fmt.Errorf("unknown operation %s", operation)
	}
}

func (d *DemoServices) handleProduct(operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch operation {
	case "check_stock":
		productID, quantity := itemFields(payload)
		if d.stock[productID] < quantity {
			return nil, fmt.Errorf("insufficient stock for %s", productID)
		}
		return map[string]interface{}{"product_id": productID, "available": true}, nil

	case "decrease_stock":
		productID, quantity := itemFields(payload)
		if d.stock[productID] < quantity {
			return nil, fmt.Errorf("insufficient stock for %s", productID)
		}
		d.stock[productID] -= quantity
		return map[string]interface{}{"product_id": productID, "stock": d.stock[productID]}, nil

	case "increase_stock":
		// Single-item form, or a bulk items list from restocking.
		if rawItems, ok := payload["items"].([]interface{}); ok {
			for _, raw := range rawItems {
				if item, ok := raw.(map[string]interface{}); ok {
					productID, quantity := itemFields(item)
					d.stock[productID] += quantity
				}
			}
			return map[string]interface{}{"restocked": len(rawItems)}, nil
		}
		productID, quantity := itemFields(payload)
		d.stock[productID] += quantity
		return map[string]interface{}{"product_id": productID, "stock": d.stock[productID]}, nil

	default:
		return nil, fmt.Errorf("unknown operation %s", operation)
	}
}

func (d *DemoServices) handleOrder(operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch operation {
	case "create_order":
		d.nextOrder++
		orderID := fmt.Sprintf("ord-%d", d.nextOrder)

		total := 0.0
		items, _ := payload["items"].([]interface{})
		for _, raw := range items {
			if item, ok := raw.(map[string]interface{}); ok {
				productID, quantity := itemFields(item)
				total += d.prices[productID] * float64(quantity)
			}
		}

		order := map[string]interface{}{
			"order_id": orderID,
			"user_id":  payload["user_id"],
			"items":    items,
			"total":    total,
			"status":   "pending",
		}
		d.orders[orderID] = order
		return order, nil

	case "get_order":
		orderID := fmt.Sprintf("%v", payload["order_id"])
		order, exists := d.orders[orderID]
		if !exists {
			return nil, fmt.Errorf("order %s not found", orderID)
		}
		return order, nil

	case "cancel_order":
		orderID := fmt.Sprintf("%v", payload["order_id"])
		order, exists := d.orders[orderID]
		if !exists {
			return nil, fmt.Errorf("order %s not found", orderID)
		}
		order["status"] = "cancelled"
		return order, nil

	default:
		return nil, fmt.Errorf("unknown operation %s", operation)
	}
}

func (d *DemoServices) handlePayment(operation string, payload map[string]interface{}) (map[string]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Payloads route through the order-to-payment transformer, so the
	// order ID arrives as transaction_id.
	orderID := fmt.Sprintf("%v", payload["transaction_id"])
	if orderID == "<nil>" {
		orderID = fmt.Sprintf("%v", payload["order_id"])
	}

	switch operation {
	case "process_payment":
		d.payments[orderID] = "paid"
		return map[string]interface{}{"order_id": orderID, "payment_status": "approved"}, nil

	case "refund":
		if d.payments[orderID] != "paid" {
			return nil, fmt.Errorf("no payment recorded for order %s", orderID)
		}
		d.payments[orderID] = "refunded"
		return map[string]interface{}{"order_id": orderID, "payment_status": "refunded"}, nil

	default:
		return nil, fmt.Errorf("unknown operation %s", operation)
	}
}

// itemFields reads a line item's product ID and quantity, tolerating
// JSON's float64 numbers.
func itemFields(payload map[string]interface{}) (string, int) {
	productID := fmt.Sprintf("%v", payload["product_id"])
	switch q := payload["quantity"].(type) {
	case int:
		return productID, q
	case float64:
		return productID, int(q)
	default:
		return productID, 0
	}
}
