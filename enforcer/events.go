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
	"fmt"
	"net"

	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
	"github.com/uber/weir/types"
)

type (
	// Emitter sends edge events to the local collector. Emission is
	// best effort: the transport may drop under load and the
	// aggregates self-heal via TTL refresh.
	Emitter interface {
		EmitReq(remoteAddr string, userKey string, verb string, dir types.Direction, instanceID string, activeReqs int, opClass types.OperationClass)
		EmitReqEnd(remoteAddr string, userKey string, verb string, dir types.Direction, instanceID string, activeReqs int)
		EmitDataXfer(remoteAddr string, userKey string, dir types.Direction, length int)
		EmitActiveReqs(instanceID string, userKey string, dir types.Direction, activeReqs int)
		EmitThrottle(timestampUsec int64, dir types.Direction, userKey string)
	}

	udpEmitter struct {
		conn   net.Conn
		logger log.Logger
	}
)

// NewUDPEmitter connects a datagram emitter to the local collector.
func NewUDPEmitter(collectorAddr string, logger log.Logger) (Emitter, error) {
	conn, err := net.Dial("udp", collectorAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to reach collector at %s: %w", collectorAddr, err)
	}
	return &udpEmitter{conn: conn, logger: logger}, nil
}

func (e *udpEmitter) send(line string) {
	if _, err := e.conn.Write([]byte(line)); err != nil {
		e.logger.Debug("event emission failed", tag.Error(err))
	}
}

func join(fields ...string) string {
	out := fields[0]
	for _, f := range fields[1:] {
		out += types.EventDelimiter + f
	}
	return out
}

func (e *udpEmitter) EmitReq(remoteAddr string, userKey string, verb string, dir types.Direction, instanceID string, activeReqs int, opClass types.OperationClass) {
	e.send(join(types.EventReq, remoteAddr, userKey, verb, dir.String(), instanceID,
		fmt.Sprintf("%d", activeReqs), string(opClass)))
}

func (e *udpEmitter) EmitReqEnd(remoteAddr string, userKey string, verb string, dir types.Direction, instanceID string, activeReqs int) {
	e.send(join(types.EventReqEnd, remoteAddr, userKey, verb, dir.String(), instanceID,
		fmt.Sprintf("%d", activeReqs)))
}

func (e *udpEmitter) EmitDataXfer(remoteAddr string, userKey string, dir types.Direction, length int) {
	e.send(join(types.EventDataXfer, remoteAddr, userKey, dir.String(), fmt.Sprintf("%d", length)))
}

func (e *udpEmitter) EmitActiveReqs(instanceID string, userKey string, dir types.Direction, activeReqs int) {
	e.send(join(types.EventActiveReqs, instanceID, userKey, dir.String(), fmt.Sprintf("%d", activeReqs)))
}

func (e *udpEmitter) EmitThrottle(timestampUsec int64, dir types.Direction, userKey string) {
	e.send(join(types.EventThrottle, fmt.Sprintf("%d", timestampUsec),
		"user_bnd_"+dir.String(), userKey))
}
