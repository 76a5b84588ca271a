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

// Package replay fetches archived recording segments back from object
// storage for playback and offline analysis.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/novatechflow/recordlog/pkg/archive"
	"github.com/novatechflow/recordlog/pkg/cache"
)

// FetcherConfig controls segment retrieval.
type FetcherConfig struct {
	// Recording is the base file name the recorder wrote, e.g. "run-42.rec".
	Recording string
	// Prefix matches the archiver's object key prefix.
	Prefix string
	// ReadAheadSegments prefetches that many following segments into the
	// cache after each fetch.
	ReadAheadSegments int
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Fetcher retrieves archived segments with LRU caching and read-ahead.
type Fetcher struct {
	client archive.S3Client
	cache  *cache.SegmentCache
	cfg    FetcherConfig
	logger *slog.Logger

	prefetchMu sync.Mutex
}

// NewFetcher builds a fetcher. cache may be nil to disable caching.
func NewFetcher(client archive.S3Client, segmentCache *cache.SegmentCache, cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: client,
		cache:  segmentCache,
		cfg:    cfg,
		logger: logger.With("component", "replay_fetcher"),
	}
}

func (f *Fetcher) segmentKey(index uint64) string {
	return path.Join(f.cfg.Prefix, fmt.Sprintf("%s.%d", f.cfg.Recording, index))
}

// List discovers the archived segment indexes of the recording, ascending.
func (f *Fetcher) List(ctx context.Context) ([]uint64, error) {
	prefix := path.Join(f.cfg.Prefix, f.cfg.Recording) + "."
	objects, err := f.client.ListSegments(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	indexes := make([]uint64, 0, len(objects))
	for _, obj := range objects {
		index, ok := parseSegmentIndex(obj.Key)
		if !ok {
			continue
		}
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	return indexes, nil
}

// Fetch returns the bytes of one archived segment file, serving from the
// cache when possible and prefetching the following segments.
func (f *Fetcher) Fetch(ctx context.Context, index uint64) ([]byte, error) {
	if f.cache != nil {
		if data, ok := f.cache.GetSegment(f.cfg.Recording, index); ok {
			f.startPrefetch(ctx, index+1)
			return data, nil
		}
	}
	data, err := f.client.DownloadSegment(ctx, f.segmentKey(index), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch segment %d: %w", index, err)
	}
	if f.cache != nil {
		f.cache.SetSegment(f.cfg.Recording, index, data)
	}
	f.startPrefetch(ctx, index+1)
	return data, nil
}

func (f *Fetcher) startPrefetch(ctx context.Context, nextIndex uint64) {
	if f.cfg.ReadAheadSegments <= 0 || f.cache == nil {
		return
	}
	f.prefetchMu.Lock()
	defer f.prefetchMu.Unlock()
	for i := 0; i < f.cfg.ReadAheadSegments; i++ {
		index := nextIndex + uint64(i)
		if _, ok := f.cache.GetSegment(f.cfg.Recording, index); ok {
			continue
		}
		go func(index uint64) {
			data, err := f.client.DownloadSegment(ctx, f.segmentKey(index), nil)
			if err != nil {
				return
			}
			f.cache.SetSegment(f.cfg.Recording, index, data)
		}(index)
	}
}

func parseSegmentIndex(key string) (uint64, bool) {
	name := path.Base(key)
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 || dot == len(name)-1 {
		return 0, false
	}
	index, err := strconv.ParseUint(name[dot+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return index, true
}
