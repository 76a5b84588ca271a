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
	"bufio"
	"fmt"
	"hash/crc32"
	"os"
	"sync"
)

// FileWriterConfig controls serialization of file-backed segments.
type FileWriterConfig struct {
	IndexIntervalMessages int32
	BufferSize            int
}

// FileSegmentWriter streams channel and message blocks into a single segment
// file and finalizes it with a sparse index and a CRC footer on Close.
type FileSegmentWriter struct {
	mu            sync.Mutex
	path          string
	f             *os.File
	bw            *bufio.Writer
	index         *IndexBuilder
	crc           uint32
	offset        uint64
	rawBytes      uint64
	channelCount  uint32
	messageCount  uint64
	headerWritten bool
	closed        bool
}

// OpenFileSegment creates the segment file at path, truncating any previous
// content.
func OpenFileSegment(path string, cfg FileWriterConfig) (*FileSegmentWriter, error) {
	if cfg.IndexIntervalMessages <= 0 {
		cfg.IndexIntervalMessages = 64
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1 << 20
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}
	return &FileSegmentWriter{
		path:  path,
		f:     f,
		bw:    bufio.NewWriterSize(f, cfg.BufferSize),
		index: NewIndexBuilder(cfg.IndexIntervalMessages),
	}, nil
}

func (w *FileSegmentWriter) write(data []byte) error {
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	w.crc = crc32.Update(w.crc, crcTable, data)
	w.offset += uint64(len(data))
	return nil
}

// WriteHeader writes the fixed leading block. Must be called exactly once,
// before any channel or message block.
func (w *FileSegmentWriter) WriteHeader(h Header) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("segment %s closed", w.path)
	}
	if w.headerWritten {
		return fmt.Errorf("segment %s header already written", w.path)
	}
	if err := w.write(encodeHeader(h)); err != nil {
		return fmt.Errorf("write header %s: %w", w.path, err)
	}
	w.headerWritten = true
	return nil
}

// WriteChannel appends a channel declaration block.
func (w *FileSegmentWriter) WriteChannel(name string, typeName string, descriptor []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("segment %s closed", w.path)
	}
	if !w.headerWritten {
		return fmt.Errorf("segment %s header not written", w.path)
	}
	if err := w.write(encodeChannelBlock(name, typeName, descriptor)); err != nil {
		return fmt.Errorf("write channel %s: %w", name, err)
	}
	w.channelCount++
	return nil
}

// WriteMessage appends a message block and records its position in the sparse
// index.
func (w *FileSegmentWriter) WriteMessage(channelName string, content []byte, timeNs uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("segment %s closed", w.path)
	}
	if !w.headerWritten {
		return fmt.Errorf("segment %s header not written", w.path)
	}
	w.index.MaybeAdd(w.messageCount, w.offset)
	if err := w.write(encodeMessageBlock(channelName, content, timeNs)); err != nil {
		return fmt.Errorf("write message on %s: %w", channelName, err)
	}
	w.messageCount++
	w.rawBytes += uint64(len(content))
	return nil
}

// Close flushes the index and footer, syncs, and closes the file. Safe to
// call twice; the second call is a no-op.
func (w *FileSegmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	indexPos := w.offset
	indexBytes, err := w.index.BuildBytes()
	if err != nil {
		w.f.Close()
		return fmt.Errorf("build index %s: %w", w.path, err)
	}
	if _, err := w.bw.Write(indexBytes); err != nil {
		w.f.Close()
		return fmt.Errorf("write index %s: %w", w.path, err)
	}
	footer := encodeFooter(Footer{
		IndexPos:     indexPos,
		IndexLen:     uint32(len(indexBytes)),
		ChannelCount: w.channelCount,
		MessageCount: w.messageCount,
		RawBytes:     w.rawBytes,
		CRC:          w.crc,
	})
	if _, err := w.bw.Write(footer); err != nil {
		w.f.Close()
		return fmt.Errorf("write footer %s: %w", w.path, err)
	}
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flush segment %s: %w", w.path, err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("sync segment %s: %w", w.path, err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close segment %s: %w", w.path, err)
	}
	w.offset = indexPos + uint64(len(indexBytes)) + footerLen
	return nil
}

// Path returns the segment file path.
func (w *FileSegmentWriter) Path() string { return w.path }

// MessageCount returns the number of message blocks written.
func (w *FileSegmentWriter) MessageCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.messageCount
}

// BytesWritten returns the total file bytes written so far.
func (w *FileSegmentWriter) BytesWritten() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}
