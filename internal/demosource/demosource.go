// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package demosource stands in for the transport layer that fetches pages
// from remote partitions (§1, deliberately out of scope in the pipeline
// package itself). It reads rewritten-projection documents out of an
// in-memory partition list, throttled by a rate limiter the way a real
// fetcher would be throttled by request units, and caches already-fetched
// pages so that resuming a query from a cursor is a cache hit rather than a
// re-fetch within the same process.
package demosource

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ClusterCockpit/cc-queryexec/internal/pipeline"
	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
	"github.com/ClusterCockpit/cc-queryexec/pkg/lrucache"
)

// cachedPageTTL is how long a fetched page stays in the cache before a
// repeat fetch counts as a fresh request against the rate limiter.
const cachedPageTTL = 5 * time.Minute

// Partition is one simulated partition's worth of already-rewritten
// projection documents, pre-split into pages.
type Partition struct {
	Pages []pipeline.Page
}

// Source fans a query out over a fixed set of partitions, draining them one
// after another: every page of a partition is returned before the first page
// of the next. Its cursor is "partitionIndex:pageIndex", so resuming
// continues with the next undrained page in that order.
type Source struct {
	partitions []Partition
	limiter    *rate.Limiter
	cache      *lrucache.Cache

	partitionIdx int
	pageIdx      int
}

// NewFactory builds a pipeline.CreateSourceCallback over partitions,
// throttling simulated fetch latency through limiter and caching up to
// cacheBytes worth of already-drained pages.
func NewFactory(partitions []Partition, limiter *rate.Limiter, cacheBytes int) pipeline.CreateSourceCallback {
	cache := lrucache.New(cacheBytes)
	return func(_ context.Context, cursor *string) (pipeline.Stage, error) {
		partitionIdx, pageIdx := 0, 0
		if cursor != nil && *cursor != "" {
			var err error
			partitionIdx, pageIdx, err = parseCursor(*cursor)
			if err != nil {
				return nil, fmt.Errorf("demosource: malformed cursor %q: %w", *cursor, err)
			}
		}
		return &Source{
			partitions:   partitions,
			limiter:      limiter,
			cache:        cache,
			partitionIdx: partitionIdx,
			pageIdx:      pageIdx,
		}, nil
	}
}

func (s *Source) Drain(ctx context.Context, maxElements int) (pipeline.Page, error) {
	if s.IsDone() {
		return pipeline.Page{Success: true}, nil
	}

	key := strconv.Itoa(s.partitionIdx) + ":" + strconv.Itoa(s.pageIdx)
	page := s.partitions[s.partitionIdx].Pages[s.pageIdx]

	cached := s.cache.Get(key, func() (interface{}, time.Duration, int) {
		if err := s.limiter.Wait(ctx); err != nil {
			return page, 0, estimateSize(page)
		}
		cclog.Debugf("demosource: fetched partition %d page %d (%d elements)", s.partitionIdx, s.pageIdx, len(page.Elements))
		return page, cachedPageTTL, estimateSize(page)
	})

	fetched := cached.(pipeline.Page)
	_ = maxElements // every simulated page is already sized to fit a single Drain call

	s.advance()

	out := fetched
	if s.IsDone() {
		out.Cursor = nil
	} else {
		c := s.cursor()
		out.Cursor = &c
	}
	return out, nil
}

func (s *Source) advance() {
	s.pageIdx++
	for s.partitionIdx < len(s.partitions) && s.pageIdx >= len(s.partitions[s.partitionIdx].Pages) {
		s.partitionIdx++
		s.pageIdx = 0
	}
}

func (s *Source) IsDone() bool {
	return s.partitionIdx >= len(s.partitions)
}

func (s *Source) TryGetCursor() (bool, *string) {
	if s.IsDone() {
		return true, nil
	}
	c := s.cursor()
	return true, &c
}

func (s *Source) cursor() string {
	return strconv.Itoa(s.partitionIdx) + ":" + strconv.Itoa(s.pageIdx)
}

func parseCursor(s string) (int, int, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			p, err := strconv.Atoi(s[:i])
			if err != nil {
				return 0, 0, err
			}
			q, err := strconv.Atoi(s[i+1:])
			if err != nil {
				return 0, 0, err
			}
			return p, q, nil
		}
	}
	return 0, 0, fmt.Errorf("expected \"partitionIdx:pageIdx\", got %q", s)
}

func estimateSize(p pipeline.Page) int {
	return len(p.Elements)*64 + 16
}

// GroupByItem wraps a grouping-key value in the {"item": v} shape the
// GroupBy stage expects (§3).
func GroupByItem(v cosmos.Element) *cosmos.Object {
	o := cosmos.NewObject()
	o.Set("item", v)
	return o
}

// RewrittenProjection assembles a {"groupByItems": [...], "payload": ...}
// document out of already-built cosmos values, the same shape
// internal/pipeline/rewritten.Parse produces from raw JSON.
func RewrittenProjection(groupByItems []cosmos.Element, payload cosmos.Element) *cosmos.Object {
	items := make(cosmos.Array, len(groupByItems))
	for i, v := range groupByItems {
		items[i] = GroupByItem(v)
	}
	o := cosmos.NewObject()
	o.Set("groupByItems", items)
	o.Set("payload", payload)
	return o
}
