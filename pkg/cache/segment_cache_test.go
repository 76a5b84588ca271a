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

package cache

import (
	"bytes"
	"testing"
)

func TestSegmentCacheGetSet(t *testing.T) {
	c := NewSegmentCache(1024)
	if _, ok := c.GetSegment("drive", 0); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.SetSegment("drive", 0, []byte("segment-zero"))
	got, ok := c.GetSegment("drive", 0)
	if !ok || !bytes.Equal(got, []byte("segment-zero")) {
		t.Fatalf("expected hit with original bytes, got %q ok=%v", got, ok)
	}
	// Same index under another recording is a different entry.
	if _, ok := c.GetSegment("other", 0); ok {
		t.Fatalf("expected miss for different recording")
	}
	c.SetSegment("drive", 0, []byte("updated"))
	got, ok = c.GetSegment("drive", 0)
	if !ok || !bytes.Equal(got, []byte("updated")) {
		t.Fatalf("expected updated bytes, got %q ok=%v", got, ok)
	}
	if c.Size() != len("updated") {
		t.Fatalf("size not adjusted on update: %d", c.Size())
	}
}

func TestSegmentCacheEvictsLRU(t *testing.T) {
	c := NewSegmentCache(30)
	c.SetSegment("drive", 0, make([]byte, 10))
	c.SetSegment("drive", 1, make([]byte, 10))
	c.SetSegment("drive", 2, make([]byte, 10))

	// Touch segment 0 so segment 1 is the least recently used.
	if _, ok := c.GetSegment("drive", 0); !ok {
		t.Fatalf("expected segment 0 present")
	}
	c.SetSegment("drive", 3, make([]byte, 10))

	if _, ok := c.GetSegment("drive", 1); ok {
		t.Fatalf("expected LRU segment 1 evicted")
	}
	for _, idx := range []uint64{0, 2, 3} {
		if _, ok := c.GetSegment("drive", idx); !ok {
			t.Fatalf("expected segment %d retained", idx)
		}
	}
	if c.Size() != 30 {
		t.Fatalf("expected size 30 got %d", c.Size())
	}
}

func TestSegmentCacheOversizedEntry(t *testing.T) {
	c := NewSegmentCache(10)
	c.SetSegment("drive", 0, make([]byte, 100))
	// An entry larger than the capacity cannot stay cached.
	if _, ok := c.GetSegment("drive", 0); ok {
		t.Fatalf("expected oversized entry evicted")
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache got size %d", c.Size())
	}
}
