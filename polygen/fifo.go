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

package polygen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// reloadLimitsRequest is the literal command accepted on the reload
// FIFO, e.g.:
//
//	echo "reload_limits" > /tmp/weir_dev_polygen_reload.fifo
const reloadLimitsRequest = "reload_limits"

// ReloadFIFOPath returns the well-known per-zone reload FIFO path.
func ReloadFIFOPath(zone string) string {
	return filepath.Join("/tmp", fmt.Sprintf("weir_%s_polygen_reload.fifo", zone))
}

func ensureFIFO(path string) error {
	if err := unix.Mkfifo(path, 0666); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("failed to create reload fifo %s: %w", path, err)
	}
	// Mkfifo is subject to umask; open the permissions back up so any
	// operator shell can write the reload command.
	return os.Chmod(path, 0666)
}

// runReloadMonitor watches the FIFO and flips the reload flag; the
// actual re-read happens on the next generator tick.
func (g *Generator) runReloadMonitor(ctx context.Context) error {
	// Opening read-write keeps a writer on the pipe, so reads block
	// instead of spinning on EOF between writers.
	f, err := os.OpenFile(g.reloadFIFOPath, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		_ = f.SetReadDeadline(time.Now().Add(time.Second))
		n, err := f.Read(buf)
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			return err
		}
		if strings.Contains(strings.TrimSpace(string(buf[:n])), reloadLimitsRequest) {
			g.logger.Info("received reload_limits request")
			g.shouldReload.Store(true)
		}
	}
}
