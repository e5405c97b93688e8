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

package proxyfilter

import (
	"io"
	"net/http"
	"time"

	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/enforcer"
	"github.com/uber/weir/types"
)

// HealthcheckPath bypasses QoS entirely, regardless of user key or
// tier.
const HealthcheckPath = "/healthcheck"

// shaperChunkSize bounds how much payload is offered to the shaper at
// once, so one large read cannot consume a whole second's quota in a
// single grant.
const shaperChunkSize = 32 * 1024

type (
	// Middleware wires the enforcer into an http.Handler chain.
	Middleware struct {
		enforcer *enforcer.Enforcer
		next     http.Handler
		logger   log.Logger
		sleep    func(time.Duration)
	}
)

// NewMiddleware wraps next with QoS enforcement.
func NewMiddleware(e *enforcer.Enforcer, next http.Handler, logger log.Logger) *Middleware {
	return &Middleware{
		enforcer: e,
		next:     next,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == HealthcheckPath {
		m.next.ServeHTTP(w, r)
		return
	}

	userKey := ExtractUserKey(r)
	opClass := Classify(r)

	if ok, reason := m.enforcer.Admit(userKey, r.Method, opClass); !ok {
		m.logger.Debug("rejecting request",
			tag.UserKey(userKey), tag.Verb(r.Method), tag.Value(reason))
		w.Header().Set("Retry-After", "1")
		http.Error(w, "slow down: "+reason+" limit exceeded", http.StatusTooManyRequests)
		return
	}

	f := m.enforcer.NewFilter(r.RemoteAddr)
	f.Enable(userKey, r.Method, opClass)
	defer f.Detach()
	f.OnHeaders()

	if r.Body != nil {
		r.Body = &shapedReader{
			filter: f,
			src:    r.Body,
			sleep:  m.sleep,
			buf:    make([]byte, shaperChunkSize),
		}
	}
	m.next.ServeHTTP(&shapedResponseWriter{ResponseWriter: w, filter: f, sleep: m.sleep}, r)
}

// shapedReader shapes the request body (upload direction). Data is
// staged so the shaper's grant always equals the bytes actually
// forwarded.
type shapedReader struct {
	filter  *enforcer.Filter
	src     io.ReadCloser
	sleep   func(time.Duration)
	buf     []byte
	pending []byte
	err     error
}

func (s *shapedReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if len(s.pending) == 0 {
			if s.err != nil {
				return 0, s.err
			}
			n, err := s.src.Read(s.buf)
			s.err = err
			s.pending = s.buf[:n]
			if n == 0 {
				if err != nil {
					return 0, err
				}
				continue
			}
		}
		offer := len(s.pending)
		if offer > len(p) {
			offer = len(p)
		}
		result := s.filter.OnPayload(types.DirectionUp, offer)
		if result.Bytes > 0 {
			n := copy(p, s.pending[:result.Bytes])
			s.pending = s.pending[n:]
			return n, nil
		}
		if result.Wait > 0 {
			s.sleep(result.Wait)
		}
	}
}

func (s *shapedReader) Close() error {
	return s.src.Close()
}

// shapedResponseWriter shapes the response body (download direction).
type shapedResponseWriter struct {
	http.ResponseWriter
	filter *enforcer.Filter
	sleep  func(time.Duration)
}

func (s *shapedResponseWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		offer := len(p)
		if offer > shaperChunkSize {
			offer = shaperChunkSize
		}
		result := s.filter.OnPayload(types.DirectionDown, offer)
		if result.Bytes > 0 {
			n, err := s.ResponseWriter.Write(p[:result.Bytes])
			total += n
			p = p[n:]
			if err != nil {
				return total, err
			}
			continue
		}
		if result.Wait > 0 {
			s.sleep(result.Wait)
		}
	}
	return total, nil
}

// Flush passes through so streaming responses keep working under
// shaping.
func (s *shapedResponseWriter) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
