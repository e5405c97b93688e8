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

package policy

import (
	"bufio"
	"io"
	"strings"

	"github.com/uber/weir/common/log"
	"github.com/uber/weir/common/log/tag"
)

type (
	// Handler receives decoded policy messages from a channel
	// connection.
	Handler interface {
		HandleViolation(m Message)
		HandleLimitShare(s LimitShare)
	}
)

// ReadBlocks consumes the policy channel line stream until EOF or a
// read error, dispatching decoded messages to the handler.
//
// Framing rules: a policies block runs to END_OF_POLICIES; a
// limit_share block runs to end_limit_share. A limit_share header
// inside an ongoing limit-share block means the previous block's tail
// was lost; the new block is parsed after a warning. A malformed
// record aborts its block but not the connection. Unknown top-level
// lines are logged and ignored.
func ReadBlocks(r io.Reader, handler Handler, logger log.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch line {
		case "":
			continue
		case PoliciesHeader:
			if err := readPoliciesBlock(scanner, handler, logger); err != nil {
				return err
			}
		case LimitShareHeader:
			if err := readLimitShareBlock(scanner, handler, logger); err != nil {
				return err
			}
		default:
			logger.Warn("ignoring unknown policy channel message", tag.Payload(line))
		}
	}
	return scanner.Err()
}

func readPoliciesBlock(scanner *bufio.Scanner, handler Handler, logger log.Logger) error {
	aborted := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == PoliciesTrailer {
			return nil
		}
		if line == "" || aborted {
			continue
		}
		m, err := ParseViolationLine(line)
		if err != nil {
			logger.Warn("malformed policy record, aborting block", tag.Error(err))
			aborted = true
			continue
		}
		handler.HandleViolation(m)
	}
	return scanner.Err()
}

func readLimitShareBlock(scanner *bufio.Scanner, handler Handler, logger log.Logger) error {
	aborted := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == LimitShareTrailer:
			return nil
		case line == LimitShareHeader:
			// The previous block's tail never arrived; start over.
			logger.Warn("limit-share framing reset: header inside an open block")
			aborted = false
			continue
		case line == "" || aborted:
			continue
		}
		s, err := ParseLimitShareLine(line)
		if err != nil {
			logger.Warn("malformed limit-share record, aborting block", tag.Error(err))
			aborted = true
			continue
		}
		handler.HandleLimitShare(s)
	}
	return scanner.Err()
}
