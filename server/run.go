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

package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"fluxbus/platform/bus"
	"fluxbus/platform/saga"
	"fluxbus/platform/shared/logger"
	"fluxbus/platform/transport"
)

// Run wires the full stack from environment configuration and serves it
// until SIGINT or SIGTERM. With demo set, an in-process transport
// emulating the business services replaces HTTP delivery.
func Run(demo bool) {
	log.Println("Starting FluxBus ESB...")

	cfg := ConfigFromEnv()
	appLog := logger.New("esb")

	var busTransport bus.Transport
	var demoServices *DemoServices
	if demo {
		demoServices = NewDemoServices()
		busTransport = demoServices.Transport()
	} else {
		busTransport = transport.NewHTTPTransport()
	}

	router := bus.NewRouter(
		bus.NewServiceRegistry(),
		bus.NewTransformerRegistry(),
		bus.NewAuditLog(),
		busTransport,
	)

	if cfg.DatabaseURL != "" {
		archiver, err := bus.NewPostgresArchiver(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect audit archive: %v", err)
		}
		defer func() {
			if err := archiver.Close(); err != nil {
				log.Printf("Error closing audit archive: %v", err)
			}
		}()
		router.Audit().SetArchiver(archiver)
		log.Println("Audit archive connected")
	}

	if cfg.RedisURL != "" {
		mirror, err := bus.NewRedisMirror(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect registry mirror: %v", err)
		}
		defer func() {
			if err := mirror.Close(); err != nil {
				log.Printf("Error closing registry mirror: %v", err)
			}
		}()
		router.Services().SetMirror(mirror)
		log.Println("Registry mirror connected")
	}

	if cfg.StaticPath != "" {
		static, err := LoadStaticConfig(cfg.StaticPath)
		if err != nil {
			log.Fatalf("Failed to load static config: %v", err)
		}
		static.Apply(router)
		log.Printf("Static config applied: %d services, %d transformers",
			len(static.Services), len(static.Transformers))
	}

	engine := saga.NewEngine(router, saga.NewInMemoryStorage(), appLog)
	saga.RegisterOrderWorkflows(engine)

	if demoServices != nil {
		demoServices.RegisterWith(router)
		log.Println("Demo mode: in-process business services registered")
	}

	srv := NewServer(router, engine, appLog)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(srv.Routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("FluxBus ESB listening on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}
