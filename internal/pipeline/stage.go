// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline implements the cross-partition DISTINCT and GROUP BY
// query execution stages: a generic Stage contract (§4.1), a content
// addressed DistinctMap (§4.2), the Distinct stage (§4.3), a
// SingleGroupAggregator (§4.4), a GroupingTable (§4.5) and the GroupBy stage
// (§4.6), dispatched by execution environment through a single factory
// (§4.7).
package pipeline

import (
	"context"

	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

// ExecutionEnvironment selects which cursor-emission policy a stage uses
// (§2): Client stages may emit a cursor inline on every page; Compute
// stages never do and expose TryGetCursor as a separate operation instead.
type ExecutionEnvironment int

const (
	Client ExecutionEnvironment = iota
	Compute
)

func (e ExecutionEnvironment) String() string {
	switch e {
	case Client:
		return "Client"
	case Compute:
		return "Compute"
	default:
		return "Unknown"
	}
}

// Page is the external contract of every Drain call (§4.1, §6).
type Page struct {
	Success              bool
	Elements             []cosmos.Element
	Cursor               *string
	DisallowCursorReason string

	ActivityID    string
	RequestCharge float64
	Diagnostics   string
	ResponseBytes int64
}

// FailurePage builds a Success=false page carrying a transient error,
// propagated verbatim by every stage that receives one (§4.1, §7).
func FailurePage(activityID string, err *TransientError) Page {
	return Page{
		Success:     false,
		ActivityID:  activityID,
		Diagnostics: err.Error(),
	}
}

// Stage is the common contract every pipeline node implements: "draw a page
// of up to N elements, with a cursor" (§1, §4.1).
type Stage interface {
	// Drain returns up to maxElements elements. It may return fewer
	// (including zero) without implying IsDone. A Success=false page must
	// be propagated unchanged by any stage that receives one, and must not
	// mutate that stage's internal state.
	Drain(ctx context.Context, maxElements int) (Page, error)

	// TryGetCursor returns (true, nil) when the stage is done, (true,
	// cursor) when a resumable cursor exists, or (false, nil) when the
	// underlying source cannot currently supply one.
	TryGetCursor() (bool, *string)

	// IsDone is monotonic: once true, it stays true.
	IsDone() bool
}

// CreateSourceCallback builds the source stage a Distinct or GroupBy stage
// sits on top of, given the inbound source cursor extracted from a
// continuation token (nil for a fresh query). This models "the transport
// layer that fetches pages from partitions", deliberately out of scope here
// (§1) -- the upstream pipeline builder supplies the callback.
type CreateSourceCallback func(ctx context.Context, sourceCursor *string) (Stage, error)

func stringPtr(s string) *string { return &s }
