// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/cc-queryexec/internal/pipeline/memsource"
	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

func obj(pairs ...interface{}) *cosmos.Object {
	o := cosmos.NewObject()
	for i := 0; i < len(pairs); i += 2 {
		o.Set(pairs[i].(string), pairs[i+1].(cosmos.Element))
	}
	return o
}

// S1: an unordered distinct query suppresses exact duplicates regardless of
// where in the stream they land.
func TestDistinctUnorderedDropsDuplicates(t *testing.T) {
	pages := []Page{
		{Success: true, Elements: []cosmos.Element{cosmos.Int64(1), cosmos.Int64(2), cosmos.Int64(1)}},
		{Success: true, Elements: []cosmos.Element{cosmos.Int64(2), cosmos.Int64(3)}},
	}
	stage, err := CreateDistinctStageAsync(context.Background(), Client, nil, Unordered, memsource.NewSliceSource(pages))
	require.NoError(t, err)

	var got []cosmos.Element
	for !stage.IsDone() {
		page, err := stage.Drain(context.Background(), 10)
		require.NoError(t, err)
		got = append(got, page.Elements...)
	}
	assert.Equal(t, []cosmos.Element{cosmos.Int64(1), cosmos.Int64(2), cosmos.Int64(3)}, got)
}

// S2: two objects with the same keys in a different insertion order
// fingerprint identically and are treated as duplicates.
func TestDistinctObjectKeyReorderIsDuplicate(t *testing.T) {
	a := obj("a", cosmos.Int64(1), "b", cosmos.String("x"))
	b := obj("b", cosmos.String("x"), "a", cosmos.Int64(1))

	pages := []Page{{Success: true, Elements: []cosmos.Element{a, b}}}
	stage, err := CreateDistinctStageAsync(context.Background(), Client, nil, Unordered, memsource.NewSliceSource(pages))
	require.NoError(t, err)

	page, err := stage.Drain(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, page.Elements, 1)
}

// S3: Int64(1), Float64(1) and String("1") are three distinct values.
func TestDistinctNumericSubtypesAreDistinguished(t *testing.T) {
	pages := []Page{{Success: true, Elements: []cosmos.Element{
		cosmos.Int64(1), cosmos.Float64(1), cosmos.String("1"), cosmos.Int64(1),
	}}}
	stage, err := CreateDistinctStageAsync(context.Background(), Client, nil, Unordered, memsource.NewSliceSource(pages))
	require.NoError(t, err)

	page, err := stage.Drain(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, page.Elements, 3)
}

// S6: a failure page is propagated unchanged and does not perturb the
// distinct map's state.
func TestDistinctPropagatesFailurePageUnchanged(t *testing.T) {
	failure := FailurePage("activity-1", &TransientError{ActivityID: "activity-1", Message: "boom"})
	pages := []Page{failure, {Success: true, Elements: []cosmos.Element{cosmos.Int64(1)}}}
	stage, err := CreateDistinctStageAsync(context.Background(), Client, nil, Unordered, memsource.NewSliceSource(pages))
	require.NoError(t, err)

	page, err := stage.Drain(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, page.Success)
	assert.Equal(t, "activity-1", page.ActivityID)
	assert.Empty(t, page.Elements)

	page, err = stage.Drain(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, page.Success)
	assert.Equal(t, []cosmos.Element{cosmos.Int64(1)}, page.Elements)
}

// Resuming a Client distinct stage from a cursor must not re-admit elements
// already seen before the cursor was issued.
func TestDistinctClientResumeFromCursor(t *testing.T) {
	pages := []Page{
		{Success: true, Elements: []cosmos.Element{cosmos.Int64(1), cosmos.Int64(2)}},
		{Success: true, Elements: []cosmos.Element{cosmos.Int64(2), cosmos.Int64(3)}},
	}
	stage, err := CreateDistinctStageAsync(context.Background(), Client, nil, Unordered, memsource.NewSliceSource(pages))
	require.NoError(t, err)

	first, err := stage.Drain(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []cosmos.Element{cosmos.Int64(1), cosmos.Int64(2)}, first.Elements)
	require.NotNil(t, first.Cursor)

	resumed, err := CreateDistinctStageAsync(context.Background(), Client, first.Cursor, Unordered, memsource.NewSliceSource(pages))
	require.NoError(t, err)
	second, err := resumed.Drain(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []cosmos.Element{cosmos.Int64(3)}, second.Elements)
}

// The Compute variant never emits an inline cursor, exposing
// TryGetCursor/DisallowCursorReason instead.
func TestDistinctComputeNeverEmitsInlineCursor(t *testing.T) {
	pages := []Page{{Success: true, Elements: []cosmos.Element{cosmos.Int64(1)}}}
	stage, err := CreateDistinctStageAsync(context.Background(), Compute, nil, Unordered, memsource.NewSliceSource(pages))
	require.NoError(t, err)

	page, err := stage.Drain(context.Background(), 10)
	require.NoError(t, err)
	assert.Nil(t, page.Cursor)
	assert.NotEmpty(t, page.DisallowCursorReason)

	ok, cursor := stage.TryGetCursor()
	assert.True(t, ok)
	assert.Nil(t, cursor)
}

func TestCreateDistinctStageAsyncRejectsUnknownEnvironment(t *testing.T) {
	pages := []Page{{Success: true}}
	_, err := CreateDistinctStageAsync(context.Background(), ExecutionEnvironment(99), nil, Unordered, memsource.NewSliceSource(pages))
	require.Error(t, err)
	var fatal *FatalError
	assert.ErrorAs(t, err, &fatal)
}
