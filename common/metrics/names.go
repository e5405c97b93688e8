// The MIT License (MIT)

// Copyright (c) 2017-2020 Uber Technologies Inc.

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package metrics

import (
	"time"

	"github.com/uber-go/tally"
)

// Counter names emitted by the weir services.
const (
	DatagramsReceived     = "datagrams_received"
	DatagramsOversized    = "datagrams_oversized"
	QueueFullDrops        = "queue_full_drops"
	MalformedEvents       = "malformed_events"
	KVCommandErrors       = "kv_command_errors"
	KVReconnects          = "kv_reconnects"
	FlushedCommands       = "flushed_commands"
	DiscardedAggregates   = "discarded_aggregates"
	ViolationsEmitted     = "violations_emitted"
	LimitSharesEmitted    = "limit_shares_emitted"
	PolicyMessagesDropped = "policy_messages_dropped"
	RequestsAdmitted      = "requests_admitted"
	RequestsRejected      = "requests_rejected"
	ThrottleDecisions     = "throttle_decisions"
	StalePolicyUpdates    = "stale_policy_updates"
)

// NewServiceScope returns the root tally scope for one weir service.
func NewServiceScope(service string) (tally.Scope, func() error) {
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix: "weir",
		Tags:   map[string]string{"service": service},
	}, time.Second)
	return scope, closer.Close
}
