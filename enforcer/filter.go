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
	"time"

	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/common/metrics"
	"github.com/uber/weir/types"
)

// throttleRetryDelay is the tick after which a throttled stream may
// attempt to forward again.
const throttleRetryDelay = time.Millisecond

// Filter is the per-request enforcement state. It is attached to a
// stream, enabled once the user key is known, consulted on every
// payload chunk, and detached on every exit path.
type Filter struct {
	e *Enforcer

	remoteAddr string
	userKey    string
	verb       string
	opClass    types.OperationClass
	direction  types.Direction

	// limit points into the user-limit table; valid for the filter's
	// lifetime because entries are only reclaimed after quiescence.
	limit *userLimit

	nextAllowedSend  time.Time
	enabled          bool
	headersProcessed bool
}

// NewFilter attaches a filter to a stream. An empty remote address
// disables shaping for this stream: data is forwarded freely.
func (e *Enforcer) NewFilter(remoteAddr string) *Filter {
	return &Filter{e: e, remoteAddr: remoteAddr}
}

// Enable activates enforcement with the extracted user key. Repeat
// activation is ignored: active-request accounting pairs one enable
// with one detach, so a double enable would leak a count forever.
func (f *Filter) Enable(userKey string, verb string, opClass types.OperationClass) {
	if f.enabled {
		f.e.logger.Warn("attempt to activate the filter twice on the same request; " +
			"activations beyond the first are ignored")
		return
	}
	if userKey == "" || f.remoteAddr == "" {
		return
	}
	f.enabled = true
	f.userKey = userKey
	f.verb = verb
	f.opClass = opClass
	f.direction = types.VerbDirection(verb)

	f.e.endpoints.Set(f.remoteAddr, userKey)

	e := f.e
	e.mu.Lock()
	f.limit = e.getOrCreateLimitLocked(userKey)
	f.limit.direction(f.direction).activeRequests++
	e.maybeCleanupLocked(e.clock.Now())
	e.mu.Unlock()
}

// OnHeaders runs once the request line and headers have cleared all
// other checks; it emits the req event. Requests rejected before this
// point never emit req, and Detach correspondingly skips req_end.
func (f *Filter) OnHeaders() {
	if !f.enabled || f.headersProcessed {
		return
	}
	f.headersProcessed = true

	e := f.e
	e.mu.RLock()
	active := f.limit.direction(f.direction).activeRequests
	e.mu.RUnlock()
	e.emitter.EmitReq(f.remoteAddr, f.userKey, f.verb, f.direction, e.cfg.InstanceID, active, f.opClass)
}

// OnPayload decides how much of an available payload chunk may be
// forwarded now, in the given transfer direction.
func (f *Filter) OnPayload(dir types.Direction, available int) ShapeResult {
	if !f.enabled || f.remoteAddr == "" || f.limit == nil {
		return ShapeResult{Bytes: available}
	}
	now := f.e.clock.Now()
	if !f.nextAllowedSend.IsZero() && now.Before(f.nextAllowedSend) {
		return ShapeResult{Bytes: 0, Wait: f.nextAllowedSend.Sub(now)}
	}
	f.nextAllowedSend = time.Time{}
	if available <= 0 {
		return ShapeResult{}
	}

	if f.speedThrottle(dir, now) {
		f.nextAllowedSend = now.Add(throttleRetryDelay)
		return ShapeResult{Bytes: 0, Wait: throttleRetryDelay, Throttled: true}
	}

	e := f.e
	e.mu.RLock()
	d := f.limit.direction(dir)
	limit := d.bytesPerSecond
	received := d.limitReceived
	requests := f.limit.direction(f.direction).activeRequests
	e.mu.RUnlock()

	if !received {
		limit = e.cfg.UnknownUserLimit
	}
	if limit < e.cfg.MinimumLimit {
		limit = e.cfg.MinimumLimit
	}

	result := applyBandwidthLimit(&d.counter, now, limit, requests, available)
	if result.Bytes > 0 {
		e.emitter.EmitDataXfer(f.remoteAddr, f.userKey, dir, result.Bytes)
	}
	if result.Wait > 0 {
		f.nextAllowedSend = now.Add(result.Wait)
	}
	return result
}

// speedThrottle applies the policy-driven slowdown. It reports true
// when the stream must not transmit this tick. When transmission is
// allowed but the policy is under pressure, a small random sleep
// spreads concurrent senders.
func (f *Filter) speedThrottle(dir types.Direction, now time.Time) bool {
	entry, active := f.e.throttleTable(dir).Lookup(f.userKey, now.Unix())
	if !active {
		return false
	}
	allowed := allowedRunTimeUsec(entry, now.Unix())
	elapsedUsec := int64(now.Nanosecond() / 1000)
	if elapsedUsec < allowed {
		if jitter := jitterDuration(entry); jitter > 0 {
			f.e.clock.Sleep(jitter)
		}
		return false
	}

	f.e.scope.Counter(metrics.ThrottleDecisions).Inc(1)
	f.logThrottled(dir, now)
	return true
}

// logThrottled emits the once-per-second throttle log and event. Many
// threads can race here for one user; the CAS on the next-log tick
// picks exactly one winner per second.
func (f *Filter) logThrottled(dir types.Direction, now time.Time) {
	e := f.e
	e.mu.RLock()
	d := f.limit.direction(dir)
	e.mu.RUnlock()

	next := d.nextThrottleLogNanos.Load()
	if next != 0 && now.UnixNano() < next {
		return
	}
	if !d.nextThrottleLogNanos.CompareAndSwap(next, now.Add(time.Second).UnixNano()) {
		return
	}
	e.logger.Debug("throttling connection",
		tag.Direction(dir.String()), tag.Address(f.remoteAddr), tag.UserKey(f.userKey))
	e.emitter.EmitThrottle(now.UnixNano()/1000, dir, f.userKey)
}

// Detach tears the filter down; it runs on every exit path and always
// unwinds the counters the enable installed.
func (f *Filter) Detach() {
	if !f.enabled || !f.headersProcessed || f.remoteAddr == "" {
		// Cheap exit for requests that were rejected before the
		// headers cleared; they never emitted req.
		if f.enabled {
			f.unwindEnable()
		}
		return
	}

	e := f.e
	e.mu.Lock()
	f.limit.lastRequestEnd = e.clock.Now().UnixNano()
	d := f.limit.direction(f.direction)
	d.activeRequests--
	active := d.activeRequests
	e.mu.Unlock()

	if active < 0 {
		e.logger.Warn("active request count dropped below zero",
			tag.UserKey(f.userKey), tag.Counter(active))
	}
	e.emitter.EmitReqEnd(f.remoteAddr, f.userKey, f.verb, f.direction, e.cfg.InstanceID, active)
	e.endpoints.Remove(f.remoteAddr)
}

// unwindEnable reverses Enable's accounting for requests that never
// reached the headers stage.
func (f *Filter) unwindEnable() {
	e := f.e
	e.mu.Lock()
	f.limit.lastRequestEnd = e.clock.Now().UnixNano()
	f.limit.direction(f.direction).activeRequests--
	e.mu.Unlock()
	e.endpoints.Remove(f.remoteAddr)
}
