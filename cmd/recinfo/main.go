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

// Command recinfo prints the header, channel declarations, and message
// statistics of recording segment files.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/novatechflow/recordlog/pkg/storage"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <segment-file> [...]\n", os.Args[0])
		os.Exit(2)
	}
	exitCode := 0
	for _, path := range os.Args[1:] {
		if err := inspect(path); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func inspect(path string) error {
	reader, err := storage.OpenSegmentReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	header := reader.Header()
	footer := reader.Footer()
	fmt.Printf("%s\n", path)
	fmt.Printf("  version:          %d\n", header.Version)
	fmt.Printf("  created:          %s\n", header.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  chunk interval:   %s\n", time.Duration(header.ChunkIntervalNs))
	fmt.Printf("  segment interval: %s\n", time.Duration(header.SegmentIntervalNs))
	fmt.Printf("  channels:         %d\n", footer.ChannelCount)
	fmt.Printf("  messages:         %d\n", footer.MessageCount)
	fmt.Printf("  raw bytes:        %d\n", footer.RawBytes)

	perChannel := make(map[string]uint64)
	var channels []storage.ChannelRecord
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if rec.Channel != nil {
			channels = append(channels, *rec.Channel)
		}
		if rec.Message != nil {
			perChannel[rec.Message.ChannelName]++
		}
	}
	for _, ch := range channels {
		fmt.Printf("  channel %-30s type=%s messages=%d\n", ch.Name, ch.Type, perChannel[ch.Name])
	}

	if err := storage.VerifySegment(path); err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	fmt.Printf("  checksum:         ok\n")
	return nil
}
