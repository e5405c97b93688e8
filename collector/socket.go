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

package collector

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
)

const (
	rmemMaxPath = "/proc/sys/net/core/rmem_max"

	// fallbackRecvBufferSize is used when rmem_max cannot be read.
	fallbackRecvBufferSize = 8 * 1024 * 1024
)

// newUDPSocket opens the ingress socket with SO_REUSEPORT so every
// worker can bind the same port, and grows the kernel receive buffer.
// The returned size is the actual socket buffer size; the caller's
// userspace buffer must match it so one receive always fits one
// datagram.
func newUDPSocket(port int, logger log.Logger) (*net.UDPConn, int, error) {
	lc := net.ListenConfig{
		Control: func(network string, address string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to bind udp port %d: %w", port, err)
	}
	conn := pc.(*net.UDPConn)

	current := recvBufferSize(conn)
	// The kernel doubles SO_RCVBUF to cover bookkeeping overhead and
	// floors larger requests back to 2x rmem_max, so asking for twice
	// rmem_max yields the largest buffer actually usable for
	// datagrams.
	desired := 2 * readRmemMax(logger)
	if desired > current {
		if err := conn.SetReadBuffer(desired); err != nil {
			logger.Warn("failed to grow udp receive buffer", tag.Error(err))
		}
	}
	size := recvBufferSize(conn)

	logger.Info("udp receive buffer sized",
		tag.Counter(current), tag.Value(desired), tag.Port(port))
	return conn, size, nil
}

func recvBufferSize(conn *net.UDPConn) int {
	size := fallbackRecvBufferSize
	raw, err := conn.SyscallConn()
	if err != nil {
		return size
	}
	_ = raw.Control(func(fd uintptr) {
		if v, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF); err == nil {
			size = v
		}
	})
	return size
}

func readRmemMax(logger log.Logger) int {
	f, err := os.Open(rmemMaxPath)
	if err != nil {
		logger.Warn("failed to read rmem_max", tag.Error(err))
		return fallbackRecvBufferSize
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	v, convErr := strconv.Atoi(strings.TrimSpace(line))
	if (err != nil && line == "") || convErr != nil || v <= 0 {
		logger.Warn("failed to parse rmem_max", tag.Error(convErr))
		return fallbackRecvBufferSize
	}
	return v
}
