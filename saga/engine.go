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
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fluxbus/platform/bus"
	"fluxbus/platform/shared/logger"
)

// SenderName is the source service name the engine stamps on every
// message it routes.
const SenderName = "orchestrator"

// Router is the message-routing capability the engine needs. *bus.Router
// satisfies it.
type Router interface {
	Send(ctx context.Context, req bus.SendRequest) (*bus.SendResult, error)
}

// Engine executes workflows: strictly sequential forward steps, with a
// reverse-order best-effort compensation sweep when a step fails.
type Engine struct {
	router  Router
	storage Storage
	log     *logger.Logger

	mu          sync.RWMutex
	definitions map[string]Definition
}

// NewEngine creates an engine routing through the given router and
// persisting execution state to the given storage.
func NewEngine(router Router, storage Storage, log *logger.Logger) *Engine {
	return &Engine{
		router:      router,
		storage:     storage,
		log:         log,
		definitions: make(map[string]Definition),
	}
}

// RegisterWorkflow registers a definition under a name, replacing any
// existing definition with that name.
func (e *Engine) RegisterWorkflow(name string, def Definition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.definitions[name] = def
}

// WorkflowNames returns the registered workflow names, sorted.
func (e *Engine) WorkflowNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.definitions))
	for name := range e.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetExecution returns a stored execution by ID.
func (e *Engine) GetExecution(id string) (*Execution, error) {
	return e.storage.GetExecution(id)
}

// RecentExecutions returns at most limit stored executions, newest first.
func (e *Engine) RecentExecutions(limit int) []*Execution {
	return e.storage.RecentExecutions(limit)
}

// Run executes the named workflow against the given input. The returned
// execution is always non-nil once the name resolves; on failure the
// error joins the step failure with any compensation failures, and the
// execution records the full history.
func (e *Engine) Run(ctx context.Context, name string, input map[string]interface{}) (*Execution, error) {
	e.mu.RLock()
	def, ok := e.definitions[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}

	workflow, err := def(input)
	if err != nil {
		return nil, fmt.Errorf("building workflow %s: %w", name, err)
	}
	if err := workflow.validate(); err != nil {
		return nil, err
	}

	execution := &Execution{
		ID:           newExecutionID(),
		WorkflowName: name,
		Status:       ExecPending,
		Input:        input,
		Results:      make(Results),
		StartTime:    time.Now(),
	}
	if err := e.storage.SaveExecution(execution); err != nil {
		return nil, fmt.Errorf("saving execution: %w", err)
	}

	e.log.Info(execution.ID, "Workflow started", map[string]interface{}{
		"workflow": name,
		"steps":    len(workflow.Steps),
	})

	execution.Status = ExecRunning
	e.update(execution)

	runErr := e.runSteps(ctx, workflow, execution)
	if runErr == nil {
		if workflow.Output != nil {
			execution.Output = workflow.Output(execution.Results)
		}
		execution.Status = ExecCompleted
		e.finish(execution)
		promWorkflowRuns.WithLabelValues(name, string(ExecCompleted)).Inc()
		e.log.Info(execution.ID, "Workflow completed", map[string]interface{}{
			"workflow": name,
		})
		return execution, nil
	}

	compErrs := e.compensate(ctx, workflow, execution)
	if len(compErrs) == 0 {
		execution.Status = ExecCompensated
	} else {
		execution.Status = ExecCompensationFailed
	}
	e.finish(execution)
	promWorkflowRuns.WithLabelValues(name, string(execution.Status)).Inc()
	e.log.ErrorWithErr(execution.ID, "Workflow failed", runErr, map[string]interface{}{
		"workflow":             name,
		"failed_step":          execution.FailedStep,
		"compensated":          len(execution.Compensations) - len(compErrs),
		"failed_compensations": len(compErrs),
	})

	return execution, errors.Join(append([]error{runErr}, compErrs...)...)
}

// runSteps drives the forward pass. On the first step failure it records
// the failure on the execution and returns a StepFailedError.
func (e *Engine) runSteps(ctx context.Context, workflow *Workflow, execution *Execution) error {
	for _, step := range workflow.Steps {
		record := StepRecord{
			Name:      step.Name,
			Status:    "running",
			StartTime: time.Now(),
		}
		execution.Steps = append(execution.Steps, record)
		idx := len(execution.Steps) - 1
		e.update(execution)

		payload := map[string]interface{}{}
		if step.Build != nil {
			payload = step.Build(execution.Input, execution.Results)
		}

		result, err := e.router.Send(ctx, bus.SendRequest{
			From:      SenderName,
			To:        step.Target,
			Operation: step.Operation,
			Payload:   payload,
		})

		end := time.Now()
		execution.Steps[idx].EndTime = &end
		execution.Steps[idx].ProcessTime = end.Sub(record.StartTime).String()

		if err != nil {
			execution.Steps[idx].Status = "failed"
			execution.Steps[idx].Error = err.Error()
			execution.FailedStep = step.Name
			stepErr := &StepFailedError{Step: step.Name, Err: err}
			execution.Error = stepErr.Error()
			e.update(execution)
			return stepErr
		}

		execution.Steps[idx].Status = "completed"
		if result != nil && result.Payload != nil {
			execution.Results[step.Name] = result.Payload
		} else {
			execution.Results[step.Name] = map[string]interface{}{}
		}
		execution.CompletedSteps = append(execution.CompletedSteps, step.Name)
		e.update(execution)
	}
	return nil
}

// compensate sweeps the completed steps in reverse order, attempting each
// compensation regardless of whether earlier attempts failed. It returns
// one CompensationFailedError per failed attempt.
func (e *Engine) compensate(ctx context.Context, workflow *Workflow, execution *Execution) []error {
	execution.Status = ExecCompensating
	e.update(execution)

	byName := make(map[string]Step, len(workflow.Steps))
	for _, step := range workflow.Steps {
		byName[step.Name] = step
	}

	var errs []error
	for i := len(execution.CompletedSteps) - 1; i >= 0; i-- {
		step := byName[execution.CompletedSteps[i]]
		if step.Compensation == nil {
			continue
		}
		comp := step.Compensation

		promCompensationAttempts.Inc()
		payload := map[string]interface{}{}
		if comp.Build != nil {
			payload = comp.Build(execution.Input, execution.Results)
		}

		record := CompensationRecord{
			Step:      step.Name,
			Target:    comp.Target,
			Operation: comp.Operation,
		}
		_, err := e.router.Send(ctx, bus.SendRequest{
			From:      SenderName,
			To:        comp.Target,
			Operation: comp.Operation,
			Payload:   payload,
		})
		if err != nil {
			promCompensationFailures.Inc()
			record.Error = err.Error()
			errs = append(errs, &CompensationFailedError{
				Step:      step.Name,
				Operation: comp.Operation,
				Err:       err,
			})
			e.log.ErrorWithErr(execution.ID, "Compensation failed", err, map[string]interface{}{
				"step":      step.Name,
				"operation": comp.Operation,
			})
		} else {
			record.Succeeded = true
		}
		execution.Compensations = append(execution.Compensations, record)
		e.update(execution)
	}
	return errs
}

func (e *Engine) update(execution *Execution) {
	if err := e.storage.UpdateExecution(execution); err != nil {
		e.log.ErrorWithErr(execution.ID, "Failed to persist execution", err, nil)
	}
}

func (e *Engine) finish(execution *Execution) {
	end := time.Now()
	execution.EndTime = &end
	e.update(execution)
}

// newExecutionID produces IDs like wf_1756400000_a1b2c3d4.
func newExecutionID() string {
	short := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("wf_%d_%s", time.Now().Unix(), short)
}
