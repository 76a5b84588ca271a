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

import "time"

// SegmentPolicy decides when the active segment must roll over. A zero
// threshold disables that trigger.
type SegmentPolicy struct {
	// MaxRawSize bounds the sum of message content bytes per segment.
	MaxRawSize uint64
	// MaxDuration bounds the wall time a segment stays active.
	MaxDuration time.Duration
}

// ShouldSplit reports whether the incoming message must start a new segment.
// It is evaluated before the message is counted, so the triggering message
// lands in the new segment and thresholds bound segment size from above. An
// empty segment never splits, which also keeps an oversized first message in
// the segment it opened.
func (p SegmentPolicy) ShouldSplit(rawSize uint64, incomingSize uint64, elapsed time.Duration) bool {
	if rawSize == 0 {
		return false
	}
	if p.MaxRawSize > 0 && rawSize+incomingSize > p.MaxRawSize {
		return true
	}
	if p.MaxDuration > 0 && elapsed >= p.MaxDuration {
		return true
	}
	return false
}
