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
Package bus implements the FluxBus message router (ESB core) and the three
shared structures it coordinates: the service registry, the transformer
registry, and the audit log.

# Overview

Services never call each other directly. A caller hands the router a
logical (from, to, operation, payload) tuple; the router resolves the
destination endpoint through the ServiceRegistry, optionally reshapes the
payload through the TransformerRegistry, delegates delivery to a Transport,
and records both the in-flight and the terminal state of every message in
the AuditLog.

The router owns message identity: every accepted send is assigned a
monotonically increasing numeric ID, rendered on the wire as "msg-<n>".
A message is appended to the audit log twice - once with status "routing"
when the send is accepted, and once with its terminal status ("delivered"
or "error") - so an observer polling the log sees in-flight traffic, not
just completed traffic.

# Concurrency

ServiceRegistry, TransformerRegistry, and AuditLog are each guarded by
their own mutex and are safe for concurrent use. All reads that expose
internal state (Snapshot, Recent) return independent copies taken under
the lock.

# Optional sinks

The registry accepts a Mirror (a best-effort external projection of the
registration table, e.g. Redis) and the audit log accepts an Archiver
(a durable sink for audit entries, e.g. Postgres). Both are strictly
observational: failures in either are logged and never surface to
callers of the core operations.
*/
package bus
