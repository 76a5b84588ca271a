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

// Command recorder captures pub/sub traffic from Kafka topics into a
// segmented record log on local disk, optionally shipping finalized segments
// to S3-compatible object storage.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/novatechflow/recordlog/pkg/archive"
	"github.com/novatechflow/recordlog/pkg/record"
)

const (
	defaultOutput           = "recording.rec"
	defaultMetricsAddr      = ":19095"
	defaultSegmentRawBytes  = 2 << 30
	defaultSegmentDuration  = time.Minute
	defaultProgressInterval = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	output := envOrDefault("RECORDLOG_OUTPUT", defaultOutput)
	topics := parseTopics(envOrDefault("RECORDLOG_TOPICS", ""))
	if len(topics) == 0 {
		logger.Error("no topics configured, set RECORDLOG_TOPICS")
		os.Exit(1)
	}
	brokerAddr := envOrDefault("RECORDLOG_BROKER_ADDR", "127.0.0.1:9092")
	group := envOrDefault("RECORDLOG_GROUP", "recordlog")

	health := archive.NewHealthMonitor(archive.HealthConfig{})
	archiver := buildArchiver(health, logger)

	writer := record.NewWriter(record.Config{
		Policy: record.SegmentPolicy{
			MaxRawSize:  uint64(parseEnvInt("RECORDLOG_SEGMENT_MAX_RAW_BYTES", defaultSegmentRawBytes)),
			MaxDuration: parseEnvDuration("RECORDLOG_SEGMENT_MAX_DURATION", defaultSegmentDuration),
		},
		Logger: logger,
		OnFinalize: func(f record.Finalized) {
			if archiver != nil {
				archiver.Enqueue(f.Path, f.Index)
			}
		},
	})
	if err := writer.Open(output); err != nil {
		logger.Error("cannot open recording", "output", output, "error", err)
		os.Exit(1)
	}

	startMetricsServer(ctx, envOrDefault("RECORDLOG_METRICS_ADDR", defaultMetricsAddr), health, logger)

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokerAddr),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		logger.Error("cannot connect to broker", "addr", brokerAddr, "error", err)
		os.Exit(1)
	}

	logger.Info("recording started", "output", output, "broker", brokerAddr, "topics", strings.Join(topics, ","))

	go progressLoop(ctx, writer, parseEnvDuration("RECORDLOG_PROGRESS_INTERVAL", defaultProgressInterval))
	consumeLoop(ctx, client, writer, logger)

	client.Close()
	if err := writer.Close(); err != nil {
		logger.Error("recording close failed", "error", err)
	}
	if archiver != nil {
		archiver.Close()
	}
	logger.Info("recording stopped", "output", output)
}

func consumeLoop(ctx context.Context, client *kgo.Client, writer *record.Writer, logger *slog.Logger) {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, err := range errs {
				logger.Error("consume error", "topic", err.Topic, "partition", err.Partition, "error", err.Err)
			}
			continue
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			rec := iter.Next()
			if len(rec.Value) == 0 {
				continue
			}
			err := writer.WriteMessage(record.Message{
				ChannelName: rec.Topic,
				Content:     rec.Value,
				TimeNs:      uint64(rec.Timestamp.UnixNano()),
			})
			if err != nil {
				logger.Error("record write failed", "topic", rec.Topic, "error", err)
			}
		}
	}
}

func progressLoop(ctx context.Context, writer *record.Writer, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writer.ShowProgress()
		}
	}
}

// buildArchiver wires the optional S3 shipper. Uploads run on a background
// context so the shutdown drain can finish after the signal arrives.
func buildArchiver(health *archive.HealthMonitor, logger *slog.Logger) *archive.Archiver {
	if !parseEnvBool("RECORDLOG_ARCHIVE_ENABLED", false) {
		return nil
	}
	ctx := context.Background()
	client, err := archive.NewS3Client(ctx, archive.S3Config{
		Bucket:          envOrDefault("RECORDLOG_S3_BUCKET", "recordlog"),
		Region:          envOrDefault("RECORDLOG_S3_REGION", "us-east-1"),
		Endpoint:        envOrDefault("RECORDLOG_S3_ENDPOINT", ""),
		ForcePathStyle:  parseEnvBool("RECORDLOG_S3_FORCE_PATH_STYLE", false),
		AccessKeyID:     envOrDefault("RECORDLOG_S3_ACCESS_KEY", ""),
		SecretAccessKey: envOrDefault("RECORDLOG_S3_SECRET_KEY", ""),
		KMSKeyARN:       envOrDefault("RECORDLOG_S3_KMS_KEY_ARN", ""),
	})
	if err != nil {
		logger.Error("archive disabled, cannot build s3 client", "error", err)
		return nil
	}
	if err := client.EnsureBucket(ctx); err != nil {
		logger.Error("archive disabled, bucket not reachable", "error", err)
		return nil
	}
	return archive.NewArchiver(ctx, client, archive.ArchiverConfig{
		Prefix: envOrDefault("RECORDLOG_S3_PREFIX", "recordings"),
		Health: health,
		Logger: logger,
	})
}

func startMetricsServer(ctx context.Context, addr string, health *archive.HealthMonitor, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "ok state=%s\n", health.State())
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if state := health.State(); state == archive.StateUnavailable {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "not ready state=%s\n", state)
		} else {
			fmt.Fprintf(w, "ready state=%s\n", state)
		}
	})
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("RECORDLOG_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler).With("component", "recorder")
}

func envOrDefault(name, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		return val
	}
	return fallback
}

func parseEnvInt(name string, fallback int64) int64 {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseEnvBool(name string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseEnvDuration(name string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseTopics(raw string) []string {
	parts := strings.Split(raw, ",")
	topics := make([]string, 0, len(parts))
	for _, part := range parts {
		topic := strings.TrimSpace(part)
		if topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics
}
