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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis keys:
//   - fluxbus:service:<name> -> JSON ServiceRegistration
//   - fluxbus:services       -> set of registered names
const (
	mirrorKeyPrefix   = "fluxbus:service:"
	mirrorIndexKey    = "fluxbus:services"
	mirrorDialTimeout = 5 * time.Second
)

// RedisMirror projects the service registration table into Redis so
// external dashboards and sidecars can observe registrations without
// hitting the bus API. The in-process registry stays authoritative;
// the mirror is write-through and best-effort.
type RedisMirror struct {
	rdb *redis.Client
}

// NewRedisMirror connects to redisURL (redis://host:port[/db]) and
// verifies the connection.
func NewRedisMirror(redisURL string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), mirrorDialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisMirror{rdb: rdb}, nil
}

// newRedisMirror wraps an existing client; tests supply miniredis here.
func newRedisMirror(rdb *redis.Client) *RedisMirror {
	return &RedisMirror{rdb: rdb}
}

// ServiceRegistered writes the registration under its service key and
// adds the name to the index set.
func (m *RedisMirror) ServiceRegistered(ctx context.Context, reg ServiceRegistration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}

	pipe := m.rdb.Pipeline()
	pipe.Set(ctx, mirrorKeyPrefix+reg.Name, data, 0)
	pipe.SAdd(ctx, mirrorIndexKey, reg.Name)
	_, err = pipe.Exec(ctx)
	return err
}

// ServiceUnregistered removes the service key and its index entry.
func (m *RedisMirror) ServiceUnregistered(ctx context.Context, name string) error {
	pipe := m.rdb.Pipeline()
	pipe.Del(ctx, mirrorKeyPrefix+name)
	pipe.SRem(ctx, mirrorIndexKey, name)
	_, err := pipe.Exec(ctx)
	return err
}

// Close releases the Redis connection pool.
func (m *RedisMirror) Close() error {
	return m.rdb.Close()
}
