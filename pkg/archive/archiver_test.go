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
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiverUploadsSegment(t *testing.T) {
	dir := t.TempDir()
	segPath := filepath.Join(dir, "drive.record.0")
	payload := []byte("segment-bytes")
	if err := os.WriteFile(segPath, payload, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	client := NewMemoryS3Client()
	a := NewArchiver(context.Background(), client, ArchiverConfig{
		Prefix: "recordings/demo",
		Logger: quietLogger(),
	})
	a.Enqueue(segPath, 0)
	a.Close()

	if client.ObjectCount() != 1 {
		t.Fatalf("expected 1 object got %d", client.ObjectCount())
	}
	got, err := client.DownloadSegment(context.Background(), "recordings/demo/drive.record.0", nil)
	if err != nil {
		t.Fatalf("DownloadSegment: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("uploaded body mismatch: %q", got)
	}
}

func TestArchiverUploadFailureKeepsRunning(t *testing.T) {
	dir := t.TempDir()
	segPath := filepath.Join(dir, "drive.record.0")
	if err := os.WriteFile(segPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	client := NewMemoryS3Client()
	client.FailUploads = true
	health := NewHealthMonitor(HealthConfig{})
	a := NewArchiver(context.Background(), client, ArchiverConfig{
		Health: health,
		Logger: quietLogger(),
	})
	a.Enqueue(segPath, 0)
	a.Close()

	if client.ObjectCount() != 0 {
		t.Fatalf("expected no objects after failed upload, got %d", client.ObjectCount())
	}
	snap := health.Snapshot()
	if snap.ErrorRate != 1 {
		t.Fatalf("expected error rate 1 got %v", snap.ErrorRate)
	}
}

func TestArchiverSkipsMissingFile(t *testing.T) {
	client := NewMemoryS3Client()
	a := NewArchiver(context.Background(), client, ArchiverConfig{Logger: quietLogger()})
	a.Enqueue(filepath.Join(t.TempDir(), "missing.record.0"), 0)
	a.Close()
	if client.ObjectCount() != 0 {
		t.Fatalf("expected no objects got %d", client.ObjectCount())
	}
}
