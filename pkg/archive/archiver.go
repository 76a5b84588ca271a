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

package archive

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"
)

// ArchiverConfig controls segment shipping.
type ArchiverConfig struct {
	// Prefix is prepended to every object key.
	Prefix string
	// QueueLen bounds the number of finalized segments waiting for upload.
	QueueLen int
	// Health receives per-operation outcomes, if set.
	Health *HealthMonitor
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

type uploadJob struct {
	path  string
	index uint64
}

// Archiver ships finalized segment files to object storage on a background
// goroutine. Enqueue never blocks the recording path; a full queue drops the
// upload and leaves the file on local disk.
type Archiver struct {
	client S3Client
	cfg    ArchiverConfig
	logger *slog.Logger
	jobs   chan uploadJob
	done   chan struct{}
}

// NewArchiver starts the upload worker. ctx bounds individual uploads;
// cancelling it abandons in-flight transfers.
func NewArchiver(ctx context.Context, client S3Client, cfg ArchiverConfig) *Archiver {
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 16
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &Archiver{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "archiver"),
		jobs:   make(chan uploadJob, cfg.QueueLen),
		done:   make(chan struct{}),
	}
	go a.run(ctx)
	return a
}

// Enqueue schedules a finalized segment for upload without blocking.
func (a *Archiver) Enqueue(segmentPath string, index uint64) {
	select {
	case a.jobs <- uploadJob{path: segmentPath, index: index}:
	default:
		uploadsDropped.Inc()
		a.logger.Error("archive queue full, segment stays local only", "path", segmentPath, "segment_index", index)
	}
}

// Close drains outstanding uploads and stops the worker.
func (a *Archiver) Close() {
	close(a.jobs)
	<-a.done
}

func (a *Archiver) run(ctx context.Context) {
	defer close(a.done)
	for job := range a.jobs {
		a.upload(ctx, job)
	}
}

func (a *Archiver) upload(ctx context.Context, job uploadJob) {
	body, err := os.ReadFile(job.path)
	if err != nil {
		uploads.WithLabelValues("error").Inc()
		a.logger.Error("cannot read finalized segment", "path", job.path, "error", err)
		return
	}
	key := path.Join(a.cfg.Prefix, filepath.Base(job.path))
	start := time.Now()
	err = a.client.UploadSegment(ctx, key, body)
	if a.cfg.Health != nil {
		a.cfg.Health.RecordOperation("upload_segment", time.Since(start), err)
	}
	if err != nil {
		uploads.WithLabelValues("error").Inc()
		a.logger.Error("segment upload failed, segment stays local only", "key", key, "error", err)
		return
	}
	uploads.WithLabelValues("ok").Inc()
	uploadBytes.Add(float64(len(body)))
	a.logger.Info("segment archived", "key", key, "bytes", len(body), "segment_index", job.index)
}
