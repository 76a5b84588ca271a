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

import "testing"

func TestRegistryRegister(t *testing.T) {
	reg := NewChannelRegistry()
	if got := reg.Register(Channel{Name: "a", Type: "t1"}); got != Inserted {
		t.Fatalf("expected Inserted got %v", got)
	}
	if got := reg.Register(Channel{Name: "a", Type: "t1"}); got != AlreadyPresent {
		t.Fatalf("expected AlreadyPresent got %v", got)
	}
	if got := reg.Register(Channel{Name: "a", Type: "t2"}); got != Conflict {
		t.Fatalf("expected Conflict got %v", got)
	}
	if got := reg.Register(Channel{Name: "a", Type: "t1", Descriptor: []byte("d")}); got != Conflict {
		t.Fatalf("expected Conflict on descriptor mismatch got %v", got)
	}
	// The original declaration survives a conflict.
	ch, ok := reg.Lookup("a")
	if !ok || ch.Type != "t1" || len(ch.Descriptor) != 0 {
		t.Fatalf("original declaration mutated: %+v ok=%v", ch, ok)
	}
}

func TestRegistrySnapshotOrder(t *testing.T) {
	reg := NewChannelRegistry()
	names := []string{"z", "a", "m", "b"}
	for _, name := range names {
		reg.Register(Channel{Name: name, Type: "t"})
	}
	snapshot := reg.Snapshot()
	if len(snapshot) != len(names) {
		t.Fatalf("expected %d channels got %d", len(names), len(snapshot))
	}
	for i, name := range names {
		if snapshot[i].Name != name {
			t.Fatalf("declaration order lost at %d: expected %s got %s", i, name, snapshot[i].Name)
		}
	}
}

func TestRegistryReset(t *testing.T) {
	reg := NewChannelRegistry()
	reg.Register(Channel{Name: "a", Type: "t"})
	reg.Reset()
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry after reset, got %d", reg.Len())
	}
	if _, ok := reg.Lookup("a"); ok {
		t.Fatalf("stale entry survived reset")
	}
	if got := reg.Register(Channel{Name: "a", Type: "t2"}); got != Inserted {
		t.Fatalf("expected Inserted after reset got %v", got)
	}
}
