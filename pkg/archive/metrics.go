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

import "github.com/prometheus/client_golang/prometheus"

var (
	uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recordlog_archive_uploads_total",
		Help: "Count of segment upload attempts labeled by result.",
	}, []string{"result"})
	uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recordlog_archive_upload_bytes_total",
		Help: "Sum of segment bytes shipped to object storage.",
	})
	uploadsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recordlog_archive_uploads_dropped_total",
		Help: "Count of finalized segments dropped because the upload queue was full.",
	})
)

func init() {
	prometheus.MustRegister(uploads, uploadBytes, uploadsDropped)
}
