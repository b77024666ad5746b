// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"context"
	"fmt"

	"github.com/ClusterCockpit/cc-queryexec/internal/metrics"
)

const disallowCursorReason = "Use TryGetCursor"

// distinctStage implements §4.3. The two execution environments only differ
// in how Drain populates Page.Cursor / Page.DisallowCursorReason.
type distinctStage struct {
	env         ExecutionEnvironment
	source      Stage
	distinctMap DistinctMap
	metrics     *metrics.StageMetrics
}

// CreateDistinctStageAsync is the DISTINCT half of the factory described in
// §4.7 / §6. requestContinuation, if non-nil, must be a
// DistinctContinuationToken previously returned by TryGetCursor or a Client
// page's Cursor.
func CreateDistinctStageAsync(
	ctx context.Context,
	env ExecutionEnvironment,
	requestContinuation *string,
	distinctQueryType DistinctQueryType,
	createSource CreateSourceCallback,
) (Stage, error) {
	var sourceCursor, mapCursor *string

	if requestContinuation != nil && *requestContinuation != "" {
		token, err := parseDistinctContinuationToken(*requestContinuation)
		if err != nil {
			return nil, newBadRequest("could not parse DistinctContinuationToken", *requestContinuation)
		}
		sourceCursor = token.SourceToken
		mapCursor = token.DistinctMapToken
	}

	distinctMap, err := NewDistinctMap(distinctQueryType, mapCursor)
	if err != nil {
		return nil, err
	}

	source, err := createSource(ctx, sourceCursor)
	if err != nil {
		return nil, err
	}

	switch env {
	case Client, Compute:
		return &distinctStage{
			env:         env,
			source:      source,
			distinctMap: distinctMap,
			metrics:     metrics.NewStageMetrics("distinct"),
		}, nil
	default:
		return nil, newFatal(fmt.Sprintf("ExecutionEnvironment: unknown value %v", env))
	}
}

func (s *distinctStage) Drain(ctx context.Context, maxElements int) (Page, error) {
	sourcePage, err := s.source.Drain(ctx, maxElements)
	if err != nil {
		return Page{}, err
	}
	if !sourcePage.Success {
		// State is untouched on failure so the caller may retry with the
		// same cursor (§5, §7).
		return sourcePage, nil
	}

	out := sourcePage
	out.Elements = out.Elements[:0:0]
	for _, e := range sourcePage.Elements {
		ok, _ := s.distinctMap.Add(e)
		if ok {
			out.Elements = append(out.Elements, e)
		}
	}
	s.metrics.ElementsAdmitted.Add(float64(len(out.Elements)))
	s.metrics.ElementsSuppressed.Add(float64(len(sourcePage.Elements) - len(out.Elements)))
	s.metrics.PagesDrained.Inc()

	out.Success = true

	switch s.env {
	case Client:
		if !s.IsDone() && sourcePage.Cursor != nil {
			token := DistinctContinuationToken{
				SourceToken:      sourcePage.Cursor,
				DistinctMapToken: stringPtr(s.distinctMap.GetCursor()),
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

func (s *distinctStage) IsDone() bool {
	return s.source.IsDone()
}

func (s *distinctStage) TryGetCursor() (bool, *string) {
	if s.IsDone() {
		return true, nil
	}
	ok, sourceCursor := s.source.TryGetCursor()
	if !ok {
		return false, nil
	}
	token := DistinctContinuationToken{
		SourceToken:      sourceCursor,
		DistinctMapToken: stringPtr(s.distinctMap.GetCursor()),
	}
	return true, stringPtr(token.String())
}
