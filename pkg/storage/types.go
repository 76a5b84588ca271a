// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
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

package storage

import (
	"fmt"
	"time"
)

// SegmentWriter is the per-segment sink consumed by the record writer. A
// writer accepts exactly one header, then any interleaving of channel and
// message blocks, and is closed exactly once.
type SegmentWriter interface {
	WriteHeader(h Header) error
	WriteChannel(name string, typeName string, descriptor []byte) error
	WriteMessage(channelName string, content []byte, timeNs uint64) error
	Close() error
	Path() string
	MessageCount() uint64
	BytesWritten() uint64
}

// Header is the fixed leading block of every segment file. The interval
// fields are hints for downstream readers, not constraints enforced here.
type Header struct {
	Version           uint16
	Flags             uint16
	ChunkIntervalNs   uint64
	SegmentIntervalNs uint64
	CreatedAt         time.Time
}

const (
	// CurrentVersion is the container format version written by this build.
	CurrentVersion uint16 = 1

	defaultChunkInterval   = 20 * time.Second
	defaultSegmentInterval = 60 * time.Second
)

// DefaultHeader builds the header template used when a session opens without
// an explicit header.
func DefaultHeader(now time.Time) Header {
	return Header{
		Version:           CurrentVersion,
		ChunkIntervalNs:   uint64(defaultChunkInterval.Nanoseconds()),
		SegmentIntervalNs: uint64(defaultSegmentInterval.Nanoseconds()),
		CreatedAt:         now,
	}
}

// SegmentPath derives the on-disk path of segment index from the base path
// supplied at session open. Downstream tooling globs on this scheme, so it
// must stay stable.
func SegmentPath(base string, index uint64) string {
	return fmt.Sprintf("%s.%d", base, index)
}
