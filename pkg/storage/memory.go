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
	"sync"
)

// MemorySegmentWriter is an in-memory implementation of SegmentWriter for
// development and testing.
type MemorySegmentWriter struct {
	mu            sync.Mutex
	path          string
	header        Header
	channels      []ChannelRecord
	messages      []MessageRecord
	rawBytes      uint64
	headerWritten bool
	closed        bool

	// FailWrites makes every write return an error, for fault injection.
	FailWrites bool
	// FailClose makes Close return an error, for fault injection.
	FailClose bool
}

// NewMemorySegmentWriter initializes an empty in-memory segment.
func NewMemorySegmentWriter(path string) *MemorySegmentWriter {
	return &MemorySegmentWriter{path: path}
}

func (m *MemorySegmentWriter) WriteHeader(h Header) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("segment %s: injected write failure", m.path)
	}
	if m.headerWritten {
		return fmt.Errorf("segment %s header already written", m.path)
	}
	m.header = h
	m.headerWritten = true
	return nil
}

func (m *MemorySegmentWriter) WriteChannel(name string, typeName string, descriptor []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("segment %s: injected write failure", m.path)
	}
	if m.closed {
		return fmt.Errorf("segment %s closed", m.path)
	}
	m.channels = append(m.channels, ChannelRecord{
		Name:       name,
		Type:       typeName,
		Descriptor: append([]byte(nil), descriptor...),
	})
	return nil
}

func (m *MemorySegmentWriter) WriteMessage(channelName string, content []byte, timeNs uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("segment %s: injected write failure", m.path)
	}
	if m.closed {
		return fmt.Errorf("segment %s closed", m.path)
	}
	m.messages = append(m.messages, MessageRecord{
		ChannelName: channelName,
		Content:     append([]byte(nil), content...),
		TimeNs:      timeNs,
	})
	m.rawBytes += uint64(len(content))
	return nil
}

func (m *MemorySegmentWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailClose {
		return fmt.Errorf("segment %s: injected close failure", m.path)
	}
	m.closed = true
	return nil
}

func (m *MemorySegmentWriter) Path() string { return m.path }

func (m *MemorySegmentWriter) MessageCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.messages))
}

func (m *MemorySegmentWriter) BytesWritten() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rawBytes
}

// Header returns the stored header.
func (m *MemorySegmentWriter) Header() Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.header
}

// Channels returns the declared channels in declaration order.
func (m *MemorySegmentWriter) Channels() []ChannelRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChannelRecord, len(m.channels))
	copy(out, m.channels)
	return out
}

// Messages returns the written messages in write order.
func (m *MemorySegmentWriter) Messages() []MessageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MessageRecord, len(m.messages))
	copy(out, m.messages)
	return out
}

// Closed reports whether Close was called.
func (m *MemorySegmentWriter) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
