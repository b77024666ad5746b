// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package memsource provides a minimal in-memory Stage implementation that
// stands in for "the transport layer that fetches pages from partitions"
// (§1, explicitly out of scope) so the Distinct and GroupBy stages can be
// exercised in tests and in the illustrative cmd/queryexec-demo program
// without a real backing store.
package memsource

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ClusterCockpit/cc-queryexec/internal/pipeline"
)

// NewSliceSource returns a CreateSourceCallback that hands back exactly the
// given pages, one per Drain call, in order -- mirroring how a real
// partition fetcher would already have its own page boundaries. Its cursor
// is the index of the next unread page, so resuming from a previously
// issued cursor continues from the same point.
func NewSliceSource(pages []pipeline.Page) pipeline.CreateSourceCallback {
	return func(_ context.Context, cursor *string) (pipeline.Stage, error) {
		start := 0
		if cursor != nil && *cursor != "" {
			n, err := strconv.Atoi(*cursor)
			if err != nil {
				return nil, fmt.Errorf("memsource: malformed cursor %q: %w", *cursor, err)
			}
			start = n
		}
		return &sliceSource{pages: pages, idx: start}, nil
	}
}

type sliceSource struct {
	pages []pipeline.Page
	idx   int
}

func (s *sliceSource) Drain(_ context.Context, _ int) (pipeline.Page, error) {
	if s.idx >= len(s.pages) {
		return pipeline.Page{Success: true}, nil
	}
	page := s.pages[s.idx]
	s.idx++

	if s.idx < len(s.pages) {
		cursor := strconv.Itoa(s.idx)
		page.Cursor = &cursor
	} else {
		page.Cursor = nil
	}
	return page, nil
}

func (s *sliceSource) IsDone() bool { return s.idx >= len(s.pages) }

func (s *sliceSource) TryGetCursor() (bool, *string) {
	if s.IsDone() {
		return true, nil
	}
	cursor := strconv.Itoa(s.idx)
	return true, &cursor
}
