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

import "errors"

// Channel declares a named, typed message stream within a recording. Identity
// is Name; redeclaring a name with a different type or descriptor is a
// conflict.
type Channel struct {
	Name       string
	Type       string
	Descriptor []byte
}

// Message is one timestamped payload on a channel. The writer never mutates
// it.
type Message struct {
	ChannelName string
	Content     []byte
	TimeNs      uint64
}

// RawMessageType is the carrier type recorded for channels auto-registered on
// first use, when the producer never declared them explicitly.
const RawMessageType = "recordlog.RawMessage"

var (
	// ErrNotOpen is returned for operations attempted before Open or after
	// Close.
	ErrNotOpen = errors.New("record writer not open")
	// ErrAlreadyOpen is returned when Open is called on an open session.
	ErrAlreadyOpen = errors.New("record writer already open")
	// ErrChannelConflict is returned when a channel is redeclared with a
	// different type or descriptor.
	ErrChannelConflict = errors.New("channel conflict")
	// ErrEmptyMessage is returned when a message carries no content.
	ErrEmptyMessage = errors.New("empty message content")
)
