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

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recordlog_messages_written_total",
		Help: "Count of messages durably written to the active segment.",
	})
	messageBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recordlog_message_bytes_total",
		Help: "Sum of message content bytes written.",
	})
	messagesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recordlog_messages_rejected_total",
		Help: "Count of rejected writes labeled by reason.",
	}, []string{"reason"})
	segmentRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recordlog_segment_rotations_total",
		Help: "Count of completed segment rollovers.",
	})
	rotationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recordlog_segment_rotation_failures_total",
		Help: "Count of rollover attempts that could not open a replacement segment.",
	})
	rotationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recordlog_segment_rotation_seconds",
		Help:    "Time spent swapping to a new active segment, excluding background finalization.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
	segmentsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recordlog_segments_finalized_total",
		Help: "Count of segment finalizations labeled by result.",
	}, []string{"result"})
	activeSegmentIndex = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recordlog_active_segment_index",
		Help: "Index of the segment currently accepting writes.",
	})
)

func init() {
	prometheus.MustRegister(
		messagesWritten,
		messageBytes,
		messagesRejected,
		segmentRotations,
		rotationFailures,
		rotationSeconds,
		segmentsFinalized,
		activeSegmentIndex,
	)
}
