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

package record

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/novatechflow/recordlog/pkg/storage"
)

type memoryFactory struct {
	mu        sync.Mutex
	writers   []*storage.MemorySegmentWriter
	byPath    map[string]*storage.MemorySegmentWriter
	opens     int
	failAfter int // opens beyond this count fail; -1 disables
}

func newMemoryFactory() *memoryFactory {
	return &memoryFactory{byPath: make(map[string]*storage.MemorySegmentWriter), failAfter: -1}
}

func (f *memoryFactory) open(path string) (storage.SegmentWriter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && f.opens >= f.failAfter {
		return nil, errors.New("injected open failure")
	}
	w := storage.NewMemorySegmentWriter(path)
	f.opens++
	f.writers = append(f.writers, w)
	f.byPath[path] = w
	return w, nil
}

func (f *memoryFactory) segment(i int) *storage.MemorySegmentWriter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writers[i]
}

func (f *memoryFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writers)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWriter(t *testing.T, policy SegmentPolicy, factory *memoryFactory, now func() uint64) *Writer {
	t.Helper()
	return NewWriter(Config{
		Policy:      policy,
		OpenSegment: factory.open,
		Now:         now,
		Logger:      quietLogger(),
	})
}

func TestSizeRotation(t *testing.T) {
	factory := newMemoryFactory()
	w := newTestWriter(t, SegmentPolicy{MaxRawSize: 2500}, factory, nil)
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.WriteChannel("c", "test.Type", []byte("schema")); err != nil {
		t.Fatalf("WriteChannel: %v", err)
	}
	content := make([]byte, 1000)
	for i := 0; i < 3; i++ {
		msg := Message{ChannelName: "c", Content: content, TimeNs: uint64(i + 1)}
		if err := w.WriteMessage(msg); err != nil {
			t.Fatalf("WriteMessage %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if factory.count() != 2 {
		t.Fatalf("expected 2 segments got %d", factory.count())
	}
	first := factory.segment(0)
	second := factory.segment(1)
	if first.Path() != "s.0" || second.Path() != "s.1" {
		t.Fatalf("unexpected segment paths %s, %s", first.Path(), second.Path())
	}
	if got := first.MessageCount(); got != 2 {
		t.Fatalf("segment 0: expected 2 messages got %d", got)
	}
	if got := second.MessageCount(); got != 1 {
		t.Fatalf("segment 1: expected 1 message got %d", got)
	}
	for i, seg := range []*storage.MemorySegmentWriter{first, second} {
		channels := seg.Channels()
		if len(channels) != 1 || channels[0].Name != "c" || channels[0].Type != "test.Type" {
			t.Fatalf("segment %d: channel declaration missing or wrong: %+v", i, channels)
		}
		if !seg.Closed() {
			t.Fatalf("segment %d not finalized", i)
		}
	}
	// The triggering message landed in exactly one segment: the new one.
	if msgs := second.Messages(); msgs[0].TimeNs != 3 {
		t.Fatalf("expected triggering message in new segment, got time %d", msgs[0].TimeNs)
	}
}

func TestSingleSegmentWithoutThresholds(t *testing.T) {
	factory := newMemoryFactory()
	w := newTestWriter(t, SegmentPolicy{}, factory, nil)
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 100; i++ {
		msg := Message{ChannelName: "c", Content: []byte(fmt.Sprintf("payload-%d", i)), TimeNs: uint64(i + 1)}
		if err := w.WriteMessage(msg); err != nil {
			t.Fatalf("WriteMessage %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if factory.count() != 1 {
		t.Fatalf("expected single segment got %d", factory.count())
	}
	seg := factory.segment(0)
	if seg.MessageCount() != 100 {
		t.Fatalf("expected 100 messages got %d", seg.MessageCount())
	}
	if !seg.Closed() {
		t.Fatalf("segment not finalized on close")
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	factory := newMemoryFactory()
	w := newTestWriter(t, SegmentPolicy{}, factory, nil)
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	err := w.WriteMessage(Message{ChannelName: "c", TimeNs: 1})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage got %v", err)
	}
	if got := w.Progress().TotalMessages; got != 0 {
		t.Fatalf("empty message mutated state: %d messages", got)
	}
	if got := factory.segment(0).MessageCount(); got != 0 {
		t.Fatalf("empty message reached the segment: %d", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDurationRotation(t *testing.T) {
	var clock atomic.Uint64
	base := uint64(time.Second)
	clock.Store(base)
	now := func() uint64 { return clock.Load() }

	factory := newMemoryFactory()
	w := newTestWriter(t, SegmentPolicy{MaxDuration: time.Second}, factory, now)
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.WriteMessage(Message{ChannelName: "c", Content: []byte("x"), TimeNs: base}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	later := base + uint64(1500*time.Millisecond)
	clock.Store(later)
	if err := w.WriteMessage(Message{ChannelName: "c", Content: []byte("y"), TimeNs: later}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if factory.count() != 2 {
		t.Fatalf("expected duration rotation, got %d segments", factory.count())
	}
	if got := factory.segment(1).MessageCount(); got != 1 {
		t.Fatalf("expected late message in new segment, got %d", got)
	}
}

func TestOpenGuards(t *testing.T) {
	factory := newMemoryFactory()
	w := newTestWriter(t, SegmentPolicy{}, factory, nil)
	if err := w.WriteMessage(Message{ChannelName: "c", Content: []byte("x")}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen before Open got %v", err)
	}
	if err := w.WriteChannel("c", "t", nil); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen before Open got %v", err)
	}
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Open("s"); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.WriteMessage(Message{ChannelName: "c", Content: []byte("x")}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen after Close got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	factory := newMemoryFactory()
	w := newTestWriter(t, SegmentPolicy{}, factory, nil)
	if err := w.Close(); err != nil {
		t.Fatalf("Close before Open: %v", err)
	}
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestChannelConflict(t *testing.T) {
	factory := newMemoryFactory()
	w := newTestWriter(t, SegmentPolicy{}, factory, nil)
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.WriteChannel("c", "t1", []byte("d")); err != nil {
		t.Fatalf("WriteChannel: %v", err)
	}
	if err := w.WriteChannel("c", "t1", []byte("d")); err != nil {
		t.Fatalf("identical redeclaration must succeed: %v", err)
	}
	if err := w.WriteChannel("c", "t2", []byte("d")); !errors.Is(err, ErrChannelConflict) {
		t.Fatalf("expected ErrChannelConflict got %v", err)
	}
	// Identical redeclarations do not duplicate the block on disk.
	if got := len(factory.segment(0).Channels()); got != 1 {
		t.Fatalf("expected 1 channel block got %d", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestAutoRegister(t *testing.T) {
	factory := newMemoryFactory()
	w := newTestWriter(t, SegmentPolicy{}, factory, nil)
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.WriteMessage(Message{ChannelName: "implicit", Content: []byte("x"), TimeNs: 1}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	channels := factory.segment(0).Channels()
	if len(channels) != 1 || channels[0].Name != "implicit" || channels[0].Type != RawMessageType {
		t.Fatalf("auto-registration missing or wrong: %+v", channels)
	}
	// A later explicit declaration with another type is a conflict, not a
	// silent overwrite.
	if err := w.WriteChannel("implicit", "other.Type", nil); !errors.Is(err, ErrChannelConflict) {
		t.Fatalf("expected ErrChannelConflict got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOrderPreservedAcrossRotation(t *testing.T) {
	factory := newMemoryFactory()
	w := newTestWriter(t, SegmentPolicy{MaxRawSize: 64}, factory, nil)
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	const total = 50
	for i := 0; i < total; i++ {
		msg := Message{ChannelName: "c", Content: []byte(fmt.Sprintf("%08d", i)), TimeNs: uint64(i + 1)}
		if err := w.WriteMessage(msg); err != nil {
			t.Fatalf("WriteMessage %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if factory.count() < 2 {
		t.Fatalf("expected multiple segments got %d", factory.count())
	}
	seq := 0
	for i := 0; i < factory.count(); i++ {
		for _, msg := range factory.segment(i).Messages() {
			want := fmt.Sprintf("%08d", seq)
			if string(msg.Content) != want {
				t.Fatalf("order broken at %d: got %s", seq, msg.Content)
			}
			seq++
		}
	}
	if seq != total {
		t.Fatalf("message lost or duplicated: replayed %d of %d", seq, total)
	}
}

func TestRotationOpenFailureDegrades(t *testing.T) {
	factory := newMemoryFactory()
	factory.failAfter = 1 // first segment opens, every rollover fails
	w := newTestWriter(t, SegmentPolicy{MaxRawSize: 10}, factory, nil)
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 5; i++ {
		msg := Message{ChannelName: "c", Content: []byte("0123456789"), TimeNs: uint64(i + 1)}
		if err := w.WriteMessage(msg); err != nil {
			t.Fatalf("WriteMessage %d must degrade gracefully, got %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if factory.count() != 1 {
		t.Fatalf("expected writes to continue on the original segment, got %d segments", factory.count())
	}
	if got := factory.segment(0).MessageCount(); got != 5 {
		t.Fatalf("expected all 5 messages retained got %d", got)
	}
}

func TestFinalizeCallback(t *testing.T) {
	factory := newMemoryFactory()
	var mu sync.Mutex
	var finalized []Finalized
	w := NewWriter(Config{
		Policy:      SegmentPolicy{MaxRawSize: 1500},
		OpenSegment: factory.open,
		Logger:      quietLogger(),
		OnFinalize: func(f Finalized) {
			mu.Lock()
			finalized = append(finalized, f)
			mu.Unlock()
		},
	})
	if err := w.Open("s"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	content := make([]byte, 1000)
	for i := 0; i < 3; i++ {
		if err := w.WriteMessage(Message{ChannelName: "c", Content: content, TimeNs: uint64(i + 1)}); err != nil {
			t.Fatalf("WriteMessage %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(finalized) != factory.count() {
		t.Fatalf("expected %d finalize callbacks got %d", factory.count(), len(finalized))
	}
	for i, f := range finalized {
		if f.Index != uint64(i) {
			t.Fatalf("finalize order broken: entry %d has index %d", i, f.Index)
		}
		if !factory.segment(i).Closed() {
			t.Fatalf("callback fired before segment %d was finalized", i)
		}
	}
}
