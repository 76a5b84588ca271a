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
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/novatechflow/recordlog/pkg/storage"
)

// Config controls a recording session.
type Config struct {
	// Policy decides when the active segment rolls over.
	Policy SegmentPolicy
	// Header overrides the default segment header template.
	Header *storage.Header
	// File configures the default file-backed segment writers.
	File storage.FileWriterConfig
	// OpenSegment overrides how per-segment writers are constructed. The
	// default opens file-backed segments at the derived path.
	OpenSegment func(path string) (storage.SegmentWriter, error)
	// Now supplies nanosecond timestamps. Defaults to the wall clock.
	Now func() uint64
	// OnFinalize is invoked after a segment has been durably finalized,
	// from the finalization goroutine for retired segments and from Close
	// for the last one.
	OnFinalize func(Finalized)
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Finalized describes a segment whose trailer and index are on disk.
type Finalized struct {
	Path         string
	Index        uint64
	MessageCount uint64
	BytesWritten uint64
}

type retiredSegment struct {
	writer storage.SegmentWriter
	index  uint64
}

// Retired segments queue up for the finalization goroutine. The queue is
// deliberately short: in any sane configuration at most one segment is
// finalizing while the next one fills.
const finalizeQueueLen = 4

// Writer records streams of timestamped, named messages into an append-only
// sequence of segment files, rolling to a new file whenever the segmentation
// policy fires. The swap to a fresh segment happens under the writer lock
// while finalization of the retired file runs on a background goroutine, so
// producers never stall on trailer and index construction.
type Writer struct {
	cfg    Config
	logger *slog.Logger

	mu             sync.Mutex
	open           bool
	basePath       string
	header         storage.Header
	fileIndex      uint64
	active         storage.SegmentWriter
	registry       *ChannelRegistry
	segmentRawSize uint64
	segmentBeginNs uint64
	totalMessages  uint64

	retiring   chan retiredSegment
	workerDone chan struct{}
}

// NewWriter builds a writer. The session starts on Open.
func NewWriter(cfg Config) *Writer {
	if cfg.Now == nil {
		cfg.Now = func() uint64 { return uint64(time.Now().UnixNano()) }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		cfg:      cfg,
		logger:   logger.With("component", "record_writer"),
		registry: NewChannelRegistry(),
	}
	if cfg.OpenSegment == nil {
		w.cfg.OpenSegment = func(path string) (storage.SegmentWriter, error) {
			return storage.OpenFileSegment(path, cfg.File)
		}
	}
	return w
}

// Open starts a session writing segment files derived from base. Segment k
// lives at base.k.
func (w *Writer) Open(base string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.open {
		return ErrAlreadyOpen
	}
	if w.cfg.Header != nil {
		w.header = *w.cfg.Header
	} else {
		w.header = storage.DefaultHeader(time.Now())
	}
	w.basePath = base
	w.fileIndex = 0
	w.registry.Reset()
	active, err := w.openSegmentLocked(0)
	if err != nil {
		w.logger.Error("cannot open first segment", "base", base, "error", err)
		return err
	}
	w.active = active
	w.segmentRawSize = 0
	w.segmentBeginNs = w.cfg.Now()
	w.totalMessages = 0
	w.retiring = make(chan retiredSegment, finalizeQueueLen)
	w.workerDone = make(chan struct{})
	w.open = true
	go w.finalizeLoop(w.retiring, w.workerDone)
	activeSegmentIndex.Set(0)
	w.logger.Info("recording session opened", "base", base, "path", active.Path())
	return nil
}

// openSegmentLocked creates the writer for the given file index and writes
// its header. The caller replays channel declarations.
func (w *Writer) openSegmentLocked(index uint64) (storage.SegmentWriter, error) {
	path := storage.SegmentPath(w.basePath, index)
	sw, err := w.cfg.OpenSegment(path)
	if err != nil {
		return nil, fmt.Errorf("open segment %d: %w", index, err)
	}
	if err := sw.WriteHeader(w.header); err != nil {
		sw.Close()
		return nil, fmt.Errorf("write header for segment %d: %w", index, err)
	}
	return sw, nil
}

// WriteChannel declares a channel on the active segment. Identical
// redeclaration is a no-op; a name collision with a different type or
// descriptor fails and leaves the original declaration intact.
func (w *Writer) WriteChannel(name string, typeName string, descriptor []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return ErrNotOpen
	}
	return w.declareLocked(Channel{Name: name, Type: typeName, Descriptor: descriptor})
}

func (w *Writer) declareLocked(ch Channel) error {
	if existing, ok := w.registry.Lookup(ch.Name); ok {
		if existing.Type == ch.Type && bytes.Equal(existing.Descriptor, ch.Descriptor) {
			return nil
		}
		w.logger.Error("channel redeclared with different type", "channel", ch.Name, "have", existing.Type, "got", ch.Type)
		return fmt.Errorf("%w: channel %s", ErrChannelConflict, ch.Name)
	}
	if err := w.active.WriteChannel(ch.Name, ch.Type, ch.Descriptor); err != nil {
		w.logger.Error("channel write failed", "channel", ch.Name, "error", err)
		return fmt.Errorf("write channel %s: %w", ch.Name, err)
	}
	w.registry.Register(ch)
	return nil
}

// WriteMessage appends one message, rolling to a new segment first if the
// segmentation policy fires. A message on a never-declared channel registers
// the channel implicitly with the raw-message carrier type. A zero timestamp
// is stamped from the session clock.
func (w *Writer) WriteMessage(msg Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		messagesRejected.WithLabelValues("not_open").Inc()
		return ErrNotOpen
	}
	if len(msg.Content) == 0 {
		messagesRejected.WithLabelValues("empty").Inc()
		w.logger.Error("rejecting empty message", "channel", msg.ChannelName)
		return fmt.Errorf("%w: channel %s", ErrEmptyMessage, msg.ChannelName)
	}
	if msg.TimeNs == 0 {
		msg.TimeNs = w.cfg.Now()
	}
	if _, ok := w.registry.Lookup(msg.ChannelName); !ok {
		if err := w.declareLocked(Channel{Name: msg.ChannelName, Type: RawMessageType}); err != nil {
			return err
		}
	}
	if w.cfg.Policy.ShouldSplit(w.segmentRawSize, uint64(len(msg.Content)), w.elapsedLocked()) {
		w.rotateLocked(msg.TimeNs)
	}
	if w.segmentRawSize == 0 {
		w.segmentBeginNs = msg.TimeNs
	}
	if err := w.active.WriteMessage(msg.ChannelName, msg.Content, msg.TimeNs); err != nil {
		messagesRejected.WithLabelValues("io").Inc()
		w.logger.Error("message write failed", "channel", msg.ChannelName, "error", err)
		return fmt.Errorf("write message on %s: %w", msg.ChannelName, err)
	}
	w.segmentRawSize += uint64(len(msg.Content))
	w.totalMessages++
	messagesWritten.Inc()
	messageBytes.Add(float64(len(msg.Content)))
	return nil
}

func (w *Writer) elapsedLocked() time.Duration {
	now := w.cfg.Now()
	if now <= w.segmentBeginNs {
		return 0
	}
	return time.Duration(now - w.segmentBeginNs)
}

// rotateLocked performs the hitless roll: it opens the replacement segment,
// replays channel declarations, swaps it in, and queues the retired writer
// for background finalization. If the replacement cannot be opened the
// current segment keeps accepting writes past its threshold; losing data is
// worse than an oversized segment.
func (w *Writer) rotateLocked(triggerNs uint64) {
	start := time.Now()
	nextIndex := w.fileIndex + 1
	next, err := w.openSegmentLocked(nextIndex)
	if err != nil {
		rotationFailures.Inc()
		w.logger.Error("segment rollover failed, continuing on current segment", "next_index", nextIndex, "error", err)
		return
	}
	snapshot := w.registry.Snapshot()
	w.registry.Reset()
	for _, ch := range snapshot {
		if err := next.WriteChannel(ch.Name, ch.Type, ch.Descriptor); err != nil {
			rotationFailures.Inc()
			w.logger.Error("segment rollover failed, continuing on current segment", "next_index", nextIndex, "channel", ch.Name, "error", err)
			next.Close()
			// Restore the registry; the old segment stays active.
			for _, c := range snapshot {
				w.registry.Register(c)
			}
			return
		}
		w.registry.Register(ch)
	}

	prev := w.active
	w.active = next
	w.fileIndex = nextIndex
	w.segmentRawSize = 0
	w.segmentBeginNs = triggerNs

	w.retiring <- retiredSegment{writer: prev, index: nextIndex - 1}

	segmentRotations.Inc()
	rotationSeconds.Observe(time.Since(start).Seconds())
	activeSegmentIndex.Set(float64(nextIndex))
	w.logger.Info("rolled to new segment", "segment_index", nextIndex, "path", next.Path())
}

func (w *Writer) finalizeLoop(retiring <-chan retiredSegment, done chan<- struct{}) {
	defer close(done)
	for r := range retiring {
		// A corrupted retiring segment is the sole casualty; the session
		// keeps recording.
		_ = w.finalize(r)
	}
}

func (w *Writer) finalize(r retiredSegment) error {
	messageCount := r.writer.MessageCount()
	if err := r.writer.Close(); err != nil {
		segmentsFinalized.WithLabelValues("error").Inc()
		w.logger.Error("segment finalization failed", "path", r.writer.Path(), "segment_index", r.index, "error", err)
		return err
	}
	segmentsFinalized.WithLabelValues("ok").Inc()
	w.logger.Info("segment finalized", "path", r.writer.Path(), "segment_index", r.index, "messages", messageCount, "bytes", r.writer.BytesWritten())
	if w.cfg.OnFinalize != nil {
		w.cfg.OnFinalize(Finalized{
			Path:         r.writer.Path(),
			Index:        r.index,
			MessageCount: messageCount,
			BytesWritten: r.writer.BytesWritten(),
		})
	}
	return nil
}

// Close finalizes the active segment and ends the session. It waits for any
// in-flight background finalization first, so the whole file set is valid on
// disk when it returns. Closing a writer that is not open is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return nil
	}
	w.open = false
	active := w.active
	index := w.fileIndex
	retiring := w.retiring
	workerDone := w.workerDone
	w.active = nil
	w.mu.Unlock()

	close(retiring)
	<-workerDone

	// No more traffic to overlap with, so the last segment finalizes
	// synchronously. An active-segment failure is surfaced to the caller,
	// unlike a retiring-segment failure which only loses that one file.
	if err := w.finalize(retiredSegment{writer: active, index: index}); err != nil {
		return fmt.Errorf("finalize active segment %d: %w", index, err)
	}
	w.logger.Info("recording session closed", "segments", index+1)
	return nil
}

// Progress is a point-in-time view of the session.
type Progress struct {
	Open          bool
	SegmentIndex  uint64
	TotalMessages uint64
	SegmentBytes  uint64
	SegmentRaw    uint64
}

// Progress reports the current session counters.
func (w *Writer) Progress() Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := Progress{
		Open:          w.open,
		SegmentIndex:  w.fileIndex,
		TotalMessages: w.totalMessages,
		SegmentRaw:    w.segmentRawSize,
	}
	if w.active != nil {
		p.SegmentBytes = w.active.BytesWritten()
	}
	return p
}

// ShowProgress emits a status line for long recording sessions.
func (w *Writer) ShowProgress() {
	p := w.Progress()
	w.logger.Info("recording progress",
		"segment_index", p.SegmentIndex,
		"messages", p.TotalMessages,
		"segment_bytes", p.SegmentBytes,
		"segment_raw_bytes", p.SegmentRaw,
	)
}
