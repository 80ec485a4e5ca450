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
	"time"
)

// Results holds the accumulated step results of an execution, keyed by
// step name. A payload builder receives the results of strictly earlier
// steps only; forward references cannot occur because steps run in
// declaration order.
type Results map[string]map[string]interface{}

// PayloadBuilder constructs a step's outbound payload from the workflow
// input and the results of earlier steps.
type PayloadBuilder func(input map[string]interface{}, results Results) map[string]interface{}

// Compensation is a step's undo action: a routed message of the same
// shape as a forward step. Compensations are best-effort and not
// guaranteed to restore exact prior state.
type Compensation struct {
	Target    string
	Operation string
	Build     PayloadBuilder
}

// Step is one orchestration unit: a routed call to a target service with
// an optional compensating action.
type Step struct {
	Name         string
	Target       string
	Operation    string
	Build        PayloadBuilder
	Compensation *Compensation
}

// OutputBuilder projects a completed execution's results into the
// caller-facing workflow output.
type OutputBuilder func(results Results) map[string]interface{}

// Workflow is an ordered step list ready to execute. Step names must be
// unique within a workflow.
type Workflow struct {
	Name   string
	Steps  []Step
	Output OutputBuilder
}

// Definition builds a Workflow from a concrete input. Per-item steps are
// expanded here, at build time, so execution stays strictly linear.
type Definition func(input map[string]interface{}) (*Workflow, error)

// validate rejects workflows that would break execution bookkeeping.
func (w *Workflow) validate() error {
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %s has no steps", w.Name)
	}
	seen := make(map[string]bool, len(w.Steps))
	for _, step := range w.Steps {
		if step.Name == "" {
			return fmt.Errorf("workflow %s has an unnamed step", w.Name)
		}
		if seen[step.Name] {
			return fmt.Errorf("workflow %s has duplicate step name %q", w.Name, step.Name)
		}
		seen[step.Name] = true
		if step.Target == "" || step.Operation == "" {
			return fmt.Errorf("workflow %s step %s is missing target or operation", w.Name, step.Name)
		}
	}
	return nil
}

// ExecStatus is the lifecycle state of a workflow execution.
type ExecStatus string

const (
	ExecPending            ExecStatus = "pending"
	ExecRunning            ExecStatus = "running"
	ExecCompleted          ExecStatus = "completed"
	ExecCompensating       ExecStatus = "compensating"
	ExecCompensated        ExecStatus = "compensated"
	ExecCompensationFailed ExecStatus = "compensation_failed"
)

// StepRecord is the execution history of one forward step.
type StepRecord struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"` // running, completed, failed
	Error       string     `json:"error,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	ProcessTime string     `json:"process_time,omitempty"`
}

// CompensationRecord is the outcome of one compensation attempt.
type CompensationRecord struct {
	Step      string `json:"step"`
	Target    string `json:"target"`
	Operation string `json:"operation"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// Execution is a running or finished workflow instance.
type Execution struct {
	ID             string                 `json:"id"`
	WorkflowName   string                 `json:"workflow_name"`
	Status         ExecStatus             `json:"status"`
	Input          map[string]interface{} `json:"input"`
	Results        Results                `json:"results"`
	Output         map[string]interface{} `json:"output,omitempty"`
	CompletedSteps []string               `json:"completed_steps"`
	FailedStep     string                 `json:"failed_step,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Steps          []StepRecord           `json:"steps"`
	Compensations  []CompensationRecord   `json:"compensations,omitempty"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        *time.Time             `json:"end_time,omitempty"`
}

// FailedCompensations returns the compensation attempts that themselves
// failed, if any.
func (e *Execution) FailedCompensations() []CompensationRecord {
	var failed []CompensationRecord
	for _, rec := range e.Compensations {
		if !rec.Succeeded {
			failed = append(failed, rec)
		}
	}
	return failed
}

// snapshot returns a deep copy sharing no mutable state with the
// receiver, so storage reads stay independent of an engine still driving
// the run.
func (e *Execution) snapshot() *Execution {
	c := *e
	c.Input = copyPayload(e.Input)
	c.Output = copyPayload(e.Output)

	if e.Results != nil {
		c.Results = make(Results, len(e.Results))
		for step, result := range e.Results {
			c.Results[step] = copyPayload(result)
		}
	}
	if e.CompletedSteps != nil {
		c.CompletedSteps = append([]string(nil), e.CompletedSteps...)
	}
	if e.Compensations != nil {
		c.Compensations = append([]CompensationRecord(nil), e.Compensations...)
	}
	if e.Steps != nil {
		c.Steps = make([]StepRecord, len(e.Steps))
		for i, step := range e.Steps {
			c.Steps[i] = step
			if step.EndTime != nil {
				end := *step.EndTime
				c.Steps[i].EndTime = &end
			}
		}
	}
	if e.EndTime != nil {
		end := *e.EndTime
		c.EndTime = &end
	}
	return &c
}

func copyPayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
