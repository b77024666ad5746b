// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"context"
	"fmt"
)

// DistinctStageParameters are the inbound factory parameters for DISTINCT
// (§6).
type DistinctStageParameters struct {
	ExecutionEnvironment ExecutionEnvironment
	RequestContinuation  *string
	DistinctQueryType    DistinctQueryType
	CreateSourceCallback CreateSourceCallback
}

// GroupByStageParameters are the inbound factory parameters for GROUP BY
// (§6).
type GroupByStageParameters struct {
	ExecutionEnvironment ExecutionEnvironment
	RequestContinuation  *string
	AggregateSpec        AggregateSpec
	CardinalityGuard     CardinalityGuard
	CreateSourceCallback CreateSourceCallback
}

// CreateDistinctStage dispatches to the Client or Compute DISTINCT stage
// variant (§4.7). Unknown execution environments fail deterministically,
// identifying the enum and the offending value.
func CreateDistinctStage(ctx context.Context, p DistinctStageParameters) (Stage, error) {
	if p.ExecutionEnvironment != Client && p.ExecutionEnvironment != Compute {
		return nil, newFatal(fmt.Sprintf("ExecutionEnvironment: unknown value %d", int(p.ExecutionEnvironment)))
	}
	return CreateDistinctStageAsync(ctx, p.ExecutionEnvironment, p.RequestContinuation, p.DistinctQueryType, p.CreateSourceCallback)
}

// CreateGroupByStage dispatches to the Client or Compute GROUP BY stage
// variant (§4.7).
func CreateGroupByStage(ctx context.Context, p GroupByStageParameters) (Stage, error) {
	if p.ExecutionEnvironment != Client && p.ExecutionEnvironment != Compute {
		return nil, newFatal(fmt.Sprintf("ExecutionEnvironment: unknown value %d", int(p.ExecutionEnvironment)))
	}
	return CreateGroupByStageAsync(ctx, p.ExecutionEnvironment, p.RequestContinuation, p.AggregateSpec, p.CardinalityGuard, p.CreateSourceCallback)
}
