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
Package transport provides delivery implementations for the bus.Transport
capability.

HTTPTransport posts operations to remote services as JSON. LocalTransport
dispatches to in-process handlers and backs the demo mode and tests; the
router cannot tell the two apart, which is the point.

Delivery failures of any implementation are reported as *bus.DeliveryError
so the router surfaces the transport's reason verbatim.
*/
package transport
