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
	"errors"
	"fmt"
)

// ErrUnknownWorkflow is returned for workflow names with no registered
// definition.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// StepFailedError reports which forward step aborted a workflow, wrapping
// the routing error that caused it.
type StepFailedError struct {
	Step string
	Err  error
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("workflow step %s failed: %v", e.Step, e.Err)
}

func (e *StepFailedError) Unwrap() error { return e.Err }

// CompensationFailedError reports a failed compensation attempt, tagged
// with the step whose compensation it was.
type CompensationFailedError struct {
	Step      string
	Operation string
	Err       error
}

func (e *CompensationFailedError) Error() string {
	return fmt.Sprintf("compensation %s for step %s failed: %v", e.Operation, e.Step, e.Err)
}

func (e *CompensationFailedError) Unwrap() error { return e.Err }
