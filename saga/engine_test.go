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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"fluxbus/platform/bus"
	"fluxbus/platform/shared/logger"
)

// fakeRouter scripts routing outcomes by operation name and records
// every send in order.
type fakeRouter struct {
	mu      sync.Mutex
	sends   []bus.SendRequest
	results map[string]map[string]interface{}
	failOn  map[string]error
	nextID  int
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{
		results: make(map[string]map[string]interface{}),
		failOn:  make(map[string]error),
	}
}

func (f *fakeRouter) Send(_ context.Context, req bus.SendRequest) (*bus.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, req)
	f.nextID++
	id := fmt.Sprintf("msg-%d", f.nextID)

	if err, ok := f.failOn[req.Operation]; ok {
		return &bus.SendResult{MessageID: id, Status: bus.StatusError, Error: err.Error()}, err
	}
	return &bus.SendResult{
		MessageID: id,
		Status:    bus.StatusDelivered,
		Payload:   f.results[req.Operation],
	}, nil
}

// operations returns the operation names of all sends, in order.
func (f *fakeRouter) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, len(f.sends))
	for i, send := range f.sends {
		ops[i] = send.Operation
	}
	return ops
}

func newTestEngine(router Router) *Engine {
	engine := NewEngine(router, NewInMemoryStorage(), logger.New("saga-test"))
	RegisterOrderWorkflows(engine)
	return engine
}

func orderInput() map[string]interface{} {
	return map[string]interface{}{
		"user": "u1",
		"items": []interface{}{
			map[string]interface{}{"product": "p1", "qty": 2},
		},
	}
}

// TestOrderCreationHappyPath runs order creation with every step
// succeeding
func TestOrderCreationHappyPath(t *testing.T) {
	router := newFakeRouter()
	router.results["create_order"] = map[string]interface{}{"order_id": "ord-1", "total": 199.8}
	engine := newTestEngine(router)

	execution, err := engine.Run(context.Background(), WorkflowOrderCreation, orderInput())
	if err != nil {
		t.Fatalf("Unexpected run error: %v", err)
	}

	if execution.Status != ExecCompleted {
		t.Errorf("Expected status completed, got %s", execution.Status)
	}
	if execution.Output["order_id"] != "ord-1" {
		t.Errorf("Expected output order_id ord-1, got %v", execution.Output["order_id"])
	}
	if len(execution.CompletedSteps) != 5 {
		t.Errorf("Expected 5 completed steps, got %d: %v", len(execution.CompletedSteps), execution.CompletedSteps)
	}
	if execution.EndTime == nil {
		t.Error("Expected end time to be set")
	}
	if len(execution.Compensations) != 0 {
		t.Errorf("Expected no compensations, got %d", len(execution.Compensations))
	}

	wantOps := []string{"validate_user", "check_stock", "create_order", "process_payment", "decrease_stock"}
	gotOps := router.operations()
	if len(gotOps) != len(wantOps) {
		t.Fatalf("Expected %d sends, got %d: %v", len(wantOps), len(gotOps), gotOps)
	}
	for i, want := range wantOps {
		if gotOps[i] != want {
			t.Errorf("Send %d: expected operation %s, got %s", i, want, gotOps[i])
		}
	}
}

// TestOrderCreationPaymentFails verifies the compensation sweep when the
// payment step reports a delivery failure: exactly one compensation runs
// (cancel the created order) and the payment step is not counted as
// completed
func TestOrderCreationPaymentFails(t *testing.T) {
	router := newFakeRouter()
	router.results["create_order"] = map[string]interface{}{"order_id": "ord-1", "total": 199.8}
	router.failOn["process_payment"] = bus.NewDeliveryError("http://localhost:5013", "connection refused")
	engine := newTestEngine(router)

	execution, err := engine.Run(context.Background(), WorkflowOrderCreation, orderInput())
	if err == nil {
		t.Fatal("Expected run error")
	}

	if execution.Status != ExecCompensated {
		t.Errorf("Expected status compensated, got %s", execution.Status)
	}
	if execution.FailedStep != "process-payment" {
		t.Errorf("Expected failed step process-payment, got %s", execution.FailedStep)
	}
	for _, step := range execution.CompletedSteps {
		if step == "process-payment" {
			t.Error("Failed payment step must not be in completed steps")
		}
	}

	if len(execution.Compensations) != 1 {
		t.Fatalf("Expected exactly 1 compensation, got %d: %+v", len(execution.Compensations), execution.Compensations)
	}
	comp := execution.Compensations[0]
	if comp.Operation != "cancel_order" || comp.Step != "create-order" {
		t.Errorf("Expected cancel_order compensation for create-order, got %s for %s", comp.Operation, comp.Step)
	}
	if !comp.Succeeded {
		t.Errorf("Expected compensation to succeed, got error %s", comp.Error)
	}

	var stepErr *StepFailedError
	if !errors.As(err, &stepErr) {
		t.Fatalf("Expected StepFailedError, got %v", err)
	}
	if stepErr.Step != "process-payment" {
		t.Errorf("Expected step error for process-payment, got %s", stepErr.Step)
	}
	var deliveryErr *bus.DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Errorf("Expected wrapped DeliveryError, got %v", err)
	}

	// The compensation payload must carry the created order's ID.
	last := router.sends[len(router.sends)-1]
	if last.Operation != "cancel_order" || last.Payload["order_id"] != "ord-1" {
		t.Errorf("Expected final send cancel_order for ord-1, got %s %v", last.Operation, last.Payload)
	}
}

// TestOrderCreationCompensationFails drives the payment step and then
// its cancel-order compensation into failure; the execution must end
// compensation_failed and the error must name both
func TestOrderCreationCompensationFails(t *testing.T) {
	router := newFakeRouter()
	router.results["create_order"] = map[string]interface{}{"order_id": "ord-1", "total": 199.8}
	router.failOn["process_payment"] = bus.NewDeliveryError("http://localhost:5013", "connection refused")
	router.failOn["cancel_order"] = bus.NewDeliveryError("http://localhost:5012", "connection refused")
	engine := newTestEngine(router)

	execution, err := engine.Run(context.Background(), WorkflowOrderCreation, orderInput())
	if err == nil {
		t.Fatal("Expected run error")
	}

	if execution.Status != ExecCompensationFailed {
		t.Errorf("Expected status compensation_failed, got %s", execution.Status)
	}

	failed := execution.FailedCompensations()
	if len(failed) != 1 {
		t.Fatalf("Expected 1 failed compensation, got %d", len(failed))
	}
	if failed[0].Operation != "cancel_order" {
		t.Errorf("Expected failed cancel_order compensation, got %s", failed[0].Operation)
	}

	var stepErr *StepFailedError
	if !errors.As(err, &stepErr) || stepErr.Step != "process-payment" {
		t.Errorf("Expected step error naming process-payment, got %v", err)
	}
	var compErr *CompensationFailedError
	if !errors.As(err, &compErr) {
		t.Fatalf("Expected CompensationFailedError, got %v", err)
	}
	if compErr.Step != "create-order" || compErr.Operation != "cancel_order" {
		t.Errorf("Expected compensation error for create-order/cancel_order, got %s/%s", compErr.Step, compErr.Operation)
	}
}

// TestCompensationSweepIsBestEffort fails the last stock decrease of a
// two-item order and checks every completed step with a compensation
// gets an attempt, in reverse completion order, even though one of the
// compensations fails
func TestCompensationSweepIsBestEffort(t *testing.T) {
	router := newFakeRouter()
	router.results["create_order"] = map[string]interface{}{"order_id": "ord-2", "total": 350.0}
	engine := newTestEngine(router)

	input := map[string]interface{}{
		"user": "u1",
		"items": []interface{}{
			map[string]interface{}{"product": "p1", "qty": 1},
			map[string]interface{}{"product": "p2", "qty": 3},
		},
	}

	// Let the first decrease_stock through, fail the second, and also
	// fail the refund compensation mid-sweep.
	decreases := 0
	router.failOn["refund"] = bus.NewDeliveryError("http://localhost:5013", "timeout")
	engine.router = routerFunc(func(ctx context.Context, req bus.SendRequest) (*bus.SendResult, error) {
		if req.Operation == "decrease_stock" {
			decreases++
			if decreases == 2 {
				return nil, bus.NewDeliveryError("http://localhost:5011", "connection refused")
			}
		}
		return router.Send(ctx, req)
	})

	execution, err := engine.Run(context.Background(), WorkflowOrderCreation, input)
	if err == nil {
		t.Fatal("Expected run error")
	}
	if execution.Status != ExecCompensationFailed {
		t.Errorf("Expected status compensation_failed, got %s", execution.Status)
	}
	if execution.FailedStep != "decrease-stock-p2" {
		t.Errorf("Expected failed step decrease-stock-p2, got %s", execution.FailedStep)
	}

	// Reverse completion order: increase p1, refund (fails), cancel.
	wantOps := []string{"increase_stock", "refund", "cancel_order"}
	if len(execution.Compensations) != len(wantOps) {
		t.Fatalf("Expected %d compensations, got %d: %+v", len(wantOps), len(execution.Compensations), execution.Compensations)
	}
	for i, want := range wantOps {
		if execution.Compensations[i].Operation != want {
			t.Errorf("Compensation %d: expected %s, got %s", i, want, execution.Compensations[i].Operation)
		}
	}
	if execution.Compensations[1].Succeeded {
		t.Error("Expected refund compensation to fail")
	}
	if !execution.Compensations[2].Succeeded {
		t.Error("Expected cancel_order compensation to run and succeed after the refund failure")
	}
}

// routerFunc adapts a function to the Router interface
type routerFunc func(ctx context.Context, req bus.SendRequest) (*bus.SendResult, error)

func (f routerFunc) Send(ctx context.Context, req bus.SendRequest) (*bus.SendResult, error) {
	return f(ctx, req)
}

// TestOrderCancellation runs the cancellation workflow end to end
func TestOrderCancellation(t *testing.T) {
	router := newFakeRouter()
	router.results["get_order"] = map[string]interface{}{
		"order_id": "ord-7",
		"items": []interface{}{
			map[string]interface{}{"product_id": "p1", "quantity": 2},
		},
	}
	engine := newTestEngine(router)

	execution, err := engine.Run(context.Background(), WorkflowOrderCancellation, map[string]interface{}{"order_id": "ord-7"})
	if err != nil {
		t.Fatalf("Unexpected run error: %v", err)
	}

	if execution.Status != ExecCompleted {
		t.Errorf("Expected status completed, got %s", execution.Status)
	}
	if execution.Output["status"] != "cancelled" {
		t.Errorf("Expected output status cancelled, got %v", execution.Output["status"])
	}

	wantOps := []string{"get_order", "refund", "increase_stock", "cancel_order"}
	gotOps := router.operations()
	if len(gotOps) != len(wantOps) {
		t.Fatalf("Expected %d sends, got %d: %v", len(wantOps), len(gotOps), gotOps)
	}
	for i, want := range wantOps {
		if gotOps[i] != want {
			t.Errorf("Send %d: expected operation %s, got %s", i, want, gotOps[i])
		}
	}

	// Restocking carries the items learned from get-order.
	restock := router.sends[2]
	if restock.Payload["items"] == nil {
		t.Error("Expected restock payload to carry the order's items")
	}
}

// TestRunUnknownWorkflow tests name resolution failure
func TestRunUnknownWorkflow(t *testing.T) {
	engine := newTestEngine(newFakeRouter())

	_, err := engine.Run(context.Background(), "no-such-workflow", map[string]interface{}{})
	if !errors.Is(err, ErrUnknownWorkflow) {
		t.Fatalf("Expected ErrUnknownWorkflow, got %v", err)
	}
	if !strings.Contains(err.Error(), "no-such-workflow") {
		t.Errorf("Expected error to name the workflow, got %v", err)
	}
}

// TestEngineSenderName verifies every routed message originates from the
// orchestrator
func TestEngineSenderName(t *testing.T) {
	router := newFakeRouter()
	router.results["create_order"] = map[string]interface{}{"order_id": "ord-1", "total": 10.0}
	engine := newTestEngine(router)

	if _, err := engine.Run(context.Background(), WorkflowOrderCreation, orderInput()); err != nil {
		t.Fatalf("Unexpected run error: %v", err)
	}
	for i, send := range router.sends {
		if send.From != SenderName {
			t.Errorf("Send %d: expected from %s, got %s", i, SenderName, send.From)
		}
	}
}

// TestExecutionHistory checks executions land in storage and are
// retrievable by ID and via the recency listing
func TestExecutionHistory(t *testing.T) {
	router := newFakeRouter()
	router.results["create_order"] = map[string]interface{}{"order_id": "ord-1", "total": 10.0}
	engine := newTestEngine(router)

	first, err := engine.Run(context.Background(), WorkflowOrderCreation, orderInput())
	if err != nil {
		t.Fatalf("Unexpected run error: %v", err)
	}
	second, err := engine.Run(context.Background(), WorkflowOrderCreation, orderInput())
	if err != nil {
		t.Fatalf("Unexpected run error: %v", err)
	}

	got, err := engine.GetExecution(first.ID)
	if err != nil {
		t.Fatalf("Unexpected lookup error: %v", err)
	}
	if got.Status != ExecCompleted {
		t.Errorf("Expected stored status completed, got %s", got.Status)
	}

	recent := engine.RecentExecutions(1)
	if len(recent) != 1 || recent[0].ID != second.ID {
		t.Errorf("Expected most recent execution %s, got %+v", second.ID, recent)
	}
}

// TestExecutionReadsDuringRun polls storage and JSON-encodes the results
// while a workflow is mid-flight, the way a monitoring client hits the
// executions endpoint during a run. Stored snapshots must be independent
// of the engine's live bookkeeping (run with -race).
func TestExecutionReadsDuringRun(t *testing.T) {
	inner := newFakeRouter()
	inner.results["create_order"] = map[string]interface{}{"order_id": "ord-1", "total": 10.0}
	slow := routerFunc(func(ctx context.Context, req bus.SendRequest) (*bus.SendResult, error) {
		time.Sleep(2 * time.Millisecond)
		return inner.Send(ctx, req)
	})

	storage := NewInMemoryStorage()
	engine := NewEngine(slow, storage, logger.New("saga-test"))
	RegisterOrderWorkflows(engine)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := engine.Run(context.Background(), WorkflowOrderCreation, orderInput()); err != nil {
			t.Errorf("Unexpected run error: %v", err)
		}
	}()

	for {
		select {
		case <-done:
			recent := storage.RecentExecutions(5)
			if len(recent) != 1 || recent[0].Status != ExecCompleted {
				t.Fatalf("Expected one completed execution, got %+v", recent)
			}
			return
		default:
			for _, execution := range storage.RecentExecutions(5) {
				if _, err := json.Marshal(execution); err != nil {
					t.Fatalf("Failed to encode execution snapshot: %v", err)
				}
				if _, err := engine.GetExecution(execution.ID); err != nil {
					t.Fatalf("Unexpected lookup error: %v", err)
				}
			}
		}
	}
}

// TestWorkflowNames verifies registration listing
func TestWorkflowNames(t *testing.T) {
	engine := newTestEngine(newFakeRouter())
	names := engine.WorkflowNames()
	if len(names) != 2 || names[0] != WorkflowOrderCancellation || names[1] != WorkflowOrderCreation {
		t.Errorf("Expected sorted order workflow names, got %v", names)
	}
}
