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

package types

import "fmt"

// Direction is a data-transfer direction relative to the backing
// service: uploads carry request bodies, downloads carry responses.
type Direction int

const (
	// DirectionUp is client-to-service transfer.
	DirectionUp Direction = iota
	// DirectionDown is service-to-client transfer.
	DirectionDown
)

const (
	directionUpName   = "up"
	directionDownName = "dwn"
)

func (d Direction) String() string {
	if d == DirectionUp {
		return directionUpName
	}
	return directionDownName
}

// ParseDirection parses the wire form of a direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case directionUpName:
		return DirectionUp, nil
	case directionDownName:
		return DirectionDown, nil
	default:
		return DirectionDown, fmt.Errorf("unrecognized direction %q", s)
	}
}

// VerbDirection maps an HTTP method to the direction its payload
// flows: PUT and POST carry uploads, everything else downloads.
func VerbDirection(method string) Direction {
	if method == "PUT" || method == "POST" {
		return DirectionUp
	}
	return DirectionDown
}
