// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"context"
	"fmt"

	"github.com/ClusterCockpit/cc-queryexec/internal/metrics"
	"github.com/ClusterCockpit/cc-queryexec/internal/pipeline/rewritten"
	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

// groupByStage implements §4.6: a fill phase that exhausts the source into
// a GroupingTable, followed by an emit phase that drains it.
type groupByStage struct {
	env            ExecutionEnvironment
	source         Stage
	groupingTable  *GroupingTable
	metrics        *metrics.StageMetrics
	lastActivityID string
}

// CreateGroupByStageAsync is the GROUP BY half of the factory (§4.7, §6).
func CreateGroupByStageAsync(
	ctx context.Context,
	env ExecutionEnvironment,
	requestContinuation *string,
	spec AggregateSpec,
	guard CardinalityGuard,
	createSource CreateSourceCallback,
) (Stage, error) {
	if env != Client && env != Compute {
		return nil, newFatal(fmt.Sprintf("ExecutionEnvironment: unknown value %v", env))
	}

	var sourceCursor *string
	var tableCursor string

	if requestContinuation != nil && *requestContinuation != "" {
		token, err := parseGroupByContinuationToken(*requestContinuation)
		if err != nil {
			return nil, newBadRequest("could not parse GroupByContinuationToken", *requestContinuation)
		}
		sourceCursor = token.SourceToken
		if token.GroupingTableToken != nil {
			tableCursor = *token.GroupingTableToken
		}
	}

	table, err := NewGroupingTable(spec, guard, tableCursor)
	if err != nil {
		return nil, err
	}

	source, err := createSource(ctx, sourceCursor)
	if err != nil {
		return nil, err
	}

	return &groupByStage{
		env:           env,
		source:        source,
		groupingTable: table,
		metrics:       metrics.NewStageMetrics("groupby"),
	}, nil
}

func (s *groupByStage) inFillPhase() bool { return !s.source.IsDone() }

func (s *groupByStage) Drain(ctx context.Context, maxElements int) (Page, error) {
	if s.inFillPhase() {
		return s.fill(ctx, maxElements)
	}
	return s.emit(maxElements), nil
}

// fill pulls one page from the source, validates and folds each element
// into the grouping table, and returns a zero-element success page that
// still carries the source's metrics (§4.6 phase 1).
func (s *groupByStage) fill(ctx context.Context, maxElements int) (Page, error) {
	sourcePage, err := s.source.Drain(ctx, maxElements)
	if err != nil {
		return Page{}, err
	}
	if !sourcePage.Success {
		return sourcePage, nil
	}

	for _, e := range sourcePage.Elements {
		proj, err := toRewrittenProjection(e)
		if err != nil {
			return Page{}, err
		}
		if err := s.groupingTable.AddPayload(RewrittenProjection{
			GroupByItems: proj.GroupByItems,
			Payload:      proj.Payload,
		}); err != nil {
			return Page{}, err
		}
	}
	s.metrics.PagesDrained.Inc()
	if sourcePage.ActivityID != "" {
		s.lastActivityID = sourcePage.ActivityID
	}

	out := sourcePage
	out.Elements = nil
	out.Success = true

	switch s.env {
	case Client:
		if sourcePage.Cursor != nil {
			token := GroupByContinuationToken{
				SourceToken:        sourcePage.Cursor,
				GroupingTableToken: stringPtr(s.groupingTable.GetCursor()),
			}
			out.Cursor = stringPtr(token.String())
		} else {
			out.Cursor = nil
		}
	case Compute:
		out.Cursor = nil
		out.DisallowCursorReason = disallowCursorReason
	}
	return out, nil
}

// emit drains the grouping table directly; its metrics are zeroed aside
// from activity-id continuity (§4.6 phase 2).
func (s *groupByStage) emit(maxElements int) Page {
	results := s.groupingTable.Drain(maxElements)
	s.metrics.GroupsEmitted.Add(float64(len(results)))

	page := Page{
		Success:    true,
		Elements:   results,
		ActivityID: s.lastActivityID,
	}

	switch s.env {
	case Client:
		// The Client variant disallows mid-emit continuation (§4.6).
		page.Cursor = nil
		page.DisallowCursorReason = "cannot resume mid-emit-phase GROUP BY query"
	case Compute:
		page.Cursor = nil
		page.DisallowCursorReason = disallowCursorReason
	}
	return page
}

func (s *groupByStage) IsDone() bool {
	return s.source.IsDone() && s.groupingTable.Count() == 0
}

func (s *groupByStage) TryGetCursor() (bool, *string) {
	if s.IsDone() {
		return true, nil
	}

	if s.inFillPhase() {
		ok, sourceCursor := s.source.TryGetCursor()
		if !ok {
			return false, nil
		}
		token := GroupByContinuationToken{
			SourceToken:        sourceCursor,
			GroupingTableToken: stringPtr(s.groupingTable.GetCursor()),
		}
		return true, stringPtr(token.String())
	}

	// Emit phase: a cursor representing only the remaining undrained
	// groups, no source cursor needed (§4.6). The Client variant forbids
	// mid-emit continuation; Compute always supports it.
	if s.env == Client {
		return false, nil
	}
	token := GroupByContinuationToken{
		SourceToken:        nil,
		GroupingTableToken: stringPtr(s.groupingTable.GetCursor()),
	}
	return true, stringPtr(token.String())
}

// toRewrittenProjection validates a fill-phase source element against the
// embedded RewrittenGroupByProjection schema (§4.6) and re-shapes it into a
// RewrittenProjection. Validation failures are §7 BadRequestErrors, not
// panics or silently dropped rows.
func toRewrittenProjection(e cosmos.Element) (rewritten.Projection, error) {
	proj, err := rewritten.ParseElement(e)
	if err != nil {
		return rewritten.Projection{}, newBadRequest(err.Error(), "")
	}
	return proj, nil
}
