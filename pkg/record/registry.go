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
	"sync"
)

// RegisterResult describes the outcome of a channel registration.
type RegisterResult int

const (
	// Inserted means the channel was not present and has been added.
	Inserted RegisterResult = iota
	// AlreadyPresent means an identical declaration already exists.
	AlreadyPresent
	// Conflict means the name exists with a different type or descriptor;
	// the original declaration is left intact.
	Conflict
)

// ChannelRegistry tracks the channels declared in the currently active
// segment, preserving declaration order for replay into the next segment.
type ChannelRegistry struct {
	mu       sync.Mutex
	byName   map[string]int
	channels []Channel
}

// NewChannelRegistry creates an empty registry.
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{byName: make(map[string]int)}
}

// Register adds a channel declaration. Identical redeclaration is idempotent;
// a name collision with a different type or descriptor is rejected.
func (r *ChannelRegistry) Register(ch Channel) RegisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byName[ch.Name]; ok {
		existing := r.channels[i]
		if existing.Type == ch.Type && bytes.Equal(existing.Descriptor, ch.Descriptor) {
			return AlreadyPresent
		}
		return Conflict
	}
	r.byName[ch.Name] = len(r.channels)
	r.channels = append(r.channels, Channel{
		Name:       ch.Name,
		Type:       ch.Type,
		Descriptor: append([]byte(nil), ch.Descriptor...),
	})
	return Inserted
}

// Lookup returns the declaration for name, if present.
func (r *ChannelRegistry) Lookup(name string) (Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byName[name]; ok {
		return r.channels[i], true
	}
	return Channel{}, false
}

// Snapshot returns the declarations in original declaration order.
func (r *ChannelRegistry) Snapshot() []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// Reset clears the registry. Call when a new segment starts, before replaying
// declarations into it.
func (r *ChannelRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = make(map[string]int)
	r.channels = r.channels[:0]
}

// Len returns the number of declared channels.
func (r *ChannelRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}
