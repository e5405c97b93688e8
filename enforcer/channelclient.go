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

package enforcer

import (
	"context"
	"net"
	"time"

	"github.com/uber/weir/common/backoff"
	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/policy"
)

const (
	channelRetryInitial = 500 * time.Millisecond
	channelRetryMax     = 30 * time.Second
)

// RunPolicyChannel maintains the long-lived connection to the policy
// generator, dispatching decoded messages into the local tables. On
// disconnect it retries with jittered back-off; meanwhile existing
// blocks expire on their grace window and rate violations expire with
// their second, so losing the generator degrades safely.
func (e *Enforcer) RunPolicyChannel(ctx context.Context, generatorAddr string) error {
	retry := backoff.NewExponentialPolicy(channelRetryInitial, channelRetryMax)
	attempt := 0
	for ctx.Err() == nil {
		conn, err := net.Dial("tcp", generatorAddr)
		if err != nil {
			e.logger.Warn("policy channel dial failed", tag.Address(generatorAddr), tag.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-e.clock.After(retry.NextDelay(attempt)):
			}
			attempt++
			continue
		}
		attempt = 0
		e.logger.Info("policy channel connected", tag.Address(generatorAddr))

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()
		err = policy.ReadBlocks(conn, e, e.logger)
		close(done)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		e.logger.Warn("policy channel closed, reconnecting", tag.Error(err))
	}
	return nil
}
