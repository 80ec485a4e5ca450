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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	promWorkflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxbus_workflow_runs_total",
			Help: "Workflow executions by workflow name and terminal status",
		},
		[]string{"workflow", "status"},
	)
	promCompensationAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fluxbus_compensation_attempts_total",
			Help: "Total compensation attempts across all workflows",
		},
	)
	promCompensationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fluxbus_compensation_failures_total",
			Help: "Compensation attempts that themselves failed",
		},
	)
)

func init() {
	prometheus.MustRegister(promWorkflowRuns)
	prometheus.MustRegister(promCompensationAttempts)
	prometheus.MustRegister(promCompensationFailures)
}
