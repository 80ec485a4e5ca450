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
)

// Business service names the order workflows route to.
const (
	AuthService    = "auth-service"
	ProductService = "product-service"
	OrderService   = "order-service"
	PaymentService = "payment-service"
)

// Order workflow names.
const (
	WorkflowOrderCreation     = "order-creation"
	WorkflowOrderCancellation = "order-cancellation"
)

// RegisterOrderWorkflows registers the order creation and cancellation
// workflows on the engine.
func RegisterOrderWorkflows(e *Engine) {
	e.RegisterWorkflow(WorkflowOrderCreation, OrderCreation)
	e.RegisterWorkflow(WorkflowOrderCancellation, OrderCancellation)
}

// orderItem is a normalized line item of an order request.
type orderItem struct {
	ProductID interface{}
	Quantity  interface{}
}

func (it orderItem) payload() map[string]interface{} {
	return map[string]interface{}{
		"product_id": it.ProductID,
		"quantity":   it.Quantity,
	}
}

// inputItems normalizes the "items" input field. JSON decoding yields
// []interface{} of maps; both product_id/quantity and the shorter
// product/qty key pair are accepted.
func inputItems(input map[string]interface{}) ([]orderItem, error) {
	raw, ok := input["items"]
	if !ok {
		return nil, fmt.Errorf("input has no items")
	}

	var entries []interface{}
	switch v := raw.(type) {
	case []interface{}:
		entries = v
	case []map[string]interface{}:
		for _, m := range v {
			entries = append(entries, m)
		}
	default:
		return nil, fmt.Errorf("items has unexpected type %T", raw)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("items is empty")
	}

	items := make([]orderItem, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("items[%d] has unexpected type %T", i, entry)
		}
		item := orderItem{ProductID: m["product_id"], Quantity: m["quantity"]}
		if item.ProductID == nil {
			item.ProductID = m["product"]
		}
		if item.Quantity == nil {
			item.Quantity = m["qty"]
		}
		if item.ProductID == nil {
			return nil, fmt.Errorf("items[%d] has no product", i)
		}
		items = append(items, item)
	}
	return items, nil
}

// userID reads the user identifier from the input, accepting both the
// user_id and user keys.
func userID(input map[string]interface{}) interface{} {
	if id, ok := input["user_id"]; ok {
		return id
	}
	return input["user"]
}

// OrderCreation builds the order placement workflow: validate the user,
// check stock per item, create the order, charge payment, then decrease
// stock per item. Per-item steps are expanded at build time from the
// input's items list.
//
// Only the steps with lasting side effects carry compensations: the
// created order is cancelled, the payment refunded, and decreased stock
// increased back. Stock checks and user validation leave nothing to
// undo.
func OrderCreation(input map[string]interface{}) (*Workflow, error) {
	items, err := inputItems(input)
	if err != nil {
		return nil, err
	}

	steps := []Step{
		{
			Name:      "validate-user",
			Target:    AuthService,
			Operation: "validate_user",
			Build: func(input map[string]interface{}, _ Results) map[string]interface{} {
				return map[string]interface{}{"user_id": userID(input)}
			},
		},
	}

	for _, item := range items {
		item := item
		steps = append(steps, Step{
			Name:      fmt.Sprintf("check-stock-%v", item.ProductID),
			Target:    ProductService,
			Operation: "check_stock",
			Build: func(_ map[string]interface{}, _ Results) map[string]interface{} {
				return item.payload()
			},
		})
	}

	steps = append(steps, Step{
		Name:      "create-order",
		Target:    OrderService,
		Operation: "create_order",
		Build: func(input map[string]interface{}, _ Results) map[string]interface{} {
			itemPayloads := make([]interface{}, len(items))
			for i, item := range items {
				itemPayloads[i] = item.payload()
			}
			return map[string]interface{}{
				"user_id": userID(input),
				"items":   itemPayloads,
			}
		},
		Compensation: &Compensation{
			Target:    OrderService,
			Operation: "cancel_order",
			Build: func(_ map[string]interface{}, results Results) map[string]interface{} {
				return map[string]interface{}{"order_id": results["create-order"]["order_id"]}
			},
		},
	})

	steps = append(steps, Step{
		Name:      "process-payment",
		Target:    PaymentService,
		Operation: "process_payment",
		Build: func(_ map[string]interface{}, results Results) map[string]interface{} {
			order := results["create-order"]
			return map[string]interface{}{
				"order_id":       order["order_id"],
				"amount":         order["total"],
				"payment_method": "credit_card",
			}
		},
		Compensation: &Compensation{
			Target:    PaymentService,
			Operation: "refund",
			Build: func(_ map[string]interface{}, results Results) map[string]interface{} {
				return map[string]interface{}{"order_id": results["create-order"]["order_id"]}
			},
		},
	})

	for _, item := range items {
		item := item
		steps = append(steps, Step{
			Name:      fmt.Sprintf("decrease-stock-%v", item.ProductID),
			Target:    ProductService,
			Operation: "decrease_stock",
			Build: func(_ map[string]interface{}, _ Results) map[string]interface{} {
				return item.payload()
			},
			Compensation: &Compensation{
				Target:    ProductService,
				Operation: "increase_stock",
				Build: func(_ map[string]interface{}, _ Results) map[string]interface{} {
					return item.payload()
				},
			},
		})
	}

	return &Workflow{
		Name:  WorkflowOrderCreation,
		Steps: steps,
		Output: func(results Results) map[string]interface{} {
			order := results["create-order"]
			return map[string]interface{}{
				"order_id": order["order_id"],
				"total":    order["total"],
				"status":   "completed",
			}
		},
	}, nil
}

// OrderCancellation builds the order cancellation workflow: fetch the
// order, refund the payment, restock its items, then mark the order
// cancelled. It is itself a compensating flow, so its steps define no
// compensations of their own.
//
// The order's items are only known after the get-order step, so
// restocking is a single increase_stock call carrying the full items
// list rather than one expanded step per item.
func OrderCancellation(input map[string]interface{}) (*Workflow, error) {
	if input["order_id"] == nil {
		return nil, fmt.Errorf("input has no order_id")
	}

	orderIDPayload := func(input map[string]interface{}, _ Results) map[string]interface{} {
		return map[string]interface{}{"order_id": input["order_id"]}
	}

	return &Workflow{
		Name: WorkflowOrderCancellation,
		Steps: []Step{
			{
				Name:      "get-order",
				Target:    OrderService,
				Operation: "get_order",
				Build:     orderIDPayload,
			},
			{
				Name:      "refund-payment",
				Target:    PaymentService,
				Operation: "refund",
				Build:     orderIDPayload,
			},
			{
				Name:      "restock-items",
				Target:    ProductService,
				Operation: "increase_stock",
				Build: func(_ map[string]interface{}, results Results) map[string]interface{} {
					return map[string]interface{}{"items": results["get-order"]["items"]}
				},
			},
			{
				Name:      "cancel-order",
				Target:    OrderService,
				Operation: "cancel_order",
				Build:     orderIDPayload,
			},
		},
		Output: func(results Results) map[string]interface{} {
			return map[string]interface{}{
				"order_id": results["get-order"]["order_id"],
				"status":   "cancelled",
			}
		},
	}, nil
}
