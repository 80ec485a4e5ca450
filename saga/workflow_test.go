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
	"strings"
	"testing"
)

func TestWorkflowValidate(t *testing.T) {
	valid := &Workflow{
		Name: "wf",
		Steps: []Step{
			{Name: "a", Target: "svc", Operation: "op"},
			{Name: "b", Target: "svc", Operation: "op"},
		},
	}
	if err := valid.validate(); err != nil {
		t.Errorf("Unexpected validation error: %v", err)
	}

	cases := []struct {
		name     string
		workflow *Workflow
		wantMsg  string
	}{
		{
			name:     "no steps",
			workflow: &Workflow{Name: "wf"},
			wantMsg:  "no steps",
		},
		{
			name: "duplicate step names",
			workflow: &Workflow{Name: "wf", Steps: []Step{
				{Name: "a", Target: "svc", Operation: "op"},
				{Name: "a", Target: "svc", Operation: "op"},
			}},
			wantMsg: "duplicate",
		},
		{
			name: "missing target",
			workflow: &Workflow{Name: "wf", Steps: []Step{
				{Name: "a", Operation: "op"},
			}},
			wantMsg: "missing target",
		},
		{
			name: "unnamed step",
			workflow: &Workflow{Name: "wf", Steps: []Step{
				{Target: "svc", Operation: "op"},
			}},
			wantMsg: "unnamed",
		},
	}
	for _, tc := range cases {
		err := tc.workflow.validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantMsg) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.wantMsg, err)
		}
	}
}

// TestInputItems covers both accepted item key spellings
func TestInputItems(t *testing.T) {
	items, err := inputItems(map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"product": "p1", "qty": 2},
			map[string]interface{}{"product_id": "p2", "quantity": 3},
		},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ProductID != "p1" || items[0].Quantity != 2 {
		t.Errorf("Unexpected first item: %+v", items[0])
	}
	if items[1].ProductID != "p2" || items[1].Quantity != 3 {
		t.Errorf("Unexpected second item: %+v", items[1])
	}
}

func TestInputItemsRejectsBadShapes(t *testing.T) {
	cases := []map[string]interface{}{
		{},
		{"items": []interface{}{}},
		{"items": "p1"},
		{"items": []interface{}{map[string]interface{}{"qty": 1}}},
	}
	for i, input := range cases {
		if _, err := inputItems(input); err == nil {
			t.Errorf("Case %d: expected error for input %v", i, input)
		}
	}
}

// TestOrderCreationStepExpansion checks per-item steps are expanded at
// build time with stable names
func TestOrderCreationStepExpansion(t *testing.T) {
	workflow, err := OrderCreation(map[string]interface{}{
		"user": "u1",
		"items": []interface{}{
			map[string]interface{}{"product": "p1", "qty": 1},
			map[string]interface{}{"product": "p2", "qty": 2},
		},
	})
	if err != nil {
		t.Fatalf("Unexpected build error: %v", err)
	}

	wantNames := []string{
		"validate-user",
		"check-stock-p1", "check-stock-p2",
		"create-order",
		"process-payment",
		"decrease-stock-p1", "decrease-stock-p2",
	}
	if len(workflow.Steps) != len(wantNames) {
		t.Fatalf("Expected %d steps, got %d", len(wantNames), len(workflow.Steps))
	}
	for i, want := range wantNames {
		if workflow.Steps[i].Name != want {
			t.Errorf("Step %d: expected %s, got %s", i, want, workflow.Steps[i].Name)
		}
	}
	if err := workflow.validate(); err != nil {
		t.Errorf("Expanded workflow failed validation: %v", err)
	}
}

func TestOrderCancellationRequiresOrderID(t *testing.T) {
	if _, err := OrderCancellation(map[string]interface{}{}); err == nil {
		t.Fatal("Expected error for missing order_id")
	}
}
