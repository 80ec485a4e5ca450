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

package bus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for router activity. Exposed on /prometheus by the
// server package.
var (
	promMessagesRouted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fluxbus_messages_routed_total",
			Help: "Total number of messages accepted by the router",
		},
	)
	promMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fluxbus_messages_delivered_total",
			Help: "Total number of messages delivered to their destination",
		},
	)
	promMessagesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxbus_messages_failed_total",
			Help: "Total number of messages that terminated in error",
		},
		[]string{"reason"},
	)
	promDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluxbus_delivery_duration_seconds",
			Help:    "Transport delivery latency by destination service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"destination"},
	)
	promTransformsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fluxbus_transforms_applied_total",
			Help: "Total number of payload transformations applied",
		},
	)
)

func init() {
	prometheus.MustRegister(promMessagesRouted)
	prometheus.MustRegister(promMessagesDelivered)
	prometheus.MustRegister(promMessagesFailed)
	prometheus.MustRegister(promDeliveryDuration)
	prometheus.MustRegister(promTransformsApplied)
}

// Failure reason labels for promMessagesFailed.
const (
	failReasonNotFound  = "destination_not_found"
	failReasonTransform = "transformation_failed"
	failReasonDelivery  = "delivery_error"
)
