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

// Package main is the entry point for the FluxBus ESB service.
//
// The ESB is a service mediation layer that:
// - Routes messages between registered services by logical name
// - Applies payload transformations per (source, destination) pair
// - Records every message twice in an audit trail (routing, terminal)
// - Executes multi-step order workflows with compensating actions
//
// Usage:
//
//	./esb [-demo]
//
// With -demo, an in-process transport emulates the four business
// services so both order workflows run end to end without any network.
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 5010)
//	DATABASE_URL - PostgreSQL connection string for the audit archive (optional)
//	REDIS_URL - Redis connection string for the registry mirror (optional)
//	CORS_ORIGINS - comma-separated allowed origins (default: *)
//	ESB_CONFIG_FILE - YAML file of static service/transformer registrations (optional)
package main

import (
	"flag"

	"fluxbus/platform/server"
)

func main() {
	demo := flag.Bool("demo", false, "serve with in-process demo business services")
	flag.Parse()

	server.Run(*demo)
}
