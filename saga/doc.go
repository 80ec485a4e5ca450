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

/*
Package saga executes multi-step business workflows over the bus.

A Workflow is an ordered list of Steps, each naming a target service, an
operation, a payload builder, and optionally a compensating action. The
Engine runs steps strictly in declaration order, one routed message per
step; a step's payload builder may read only the results of strictly
earlier steps.

When a forward step fails, the engine walks the completed steps in
reverse order and invokes each defined compensation. The sweep is
best-effort, not transactional: a failing compensation is recorded and
the sweep continues, so every completed step gets its compensation
attempt. The execution terminates as compensated when every attempted
compensation succeeded, or compensation_failed otherwise; either way the
run is reported to the caller as a failure naming the triggering step.

Different executions run fully independently and concurrently; they share
nothing but the bus structures, reached through the router.
*/
package saga
