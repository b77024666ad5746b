// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package demosource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ClusterCockpit/cc-queryexec/internal/pipeline"
	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

func unlimited() *rate.Limiter { return rate.NewLimiter(rate.Inf, 0) }

func onePagePerElement(elems ...cosmos.Element) []pipeline.Page {
	pages := make([]pipeline.Page, len(elems))
	for i, e := range elems {
		pages[i] = pipeline.Page{Success: true, Elements: []cosmos.Element{e}}
	}
	return pages
}

func TestSourceDrainsPartitionsInOrder(t *testing.T) {
	partitions := []Partition{
		{Pages: onePagePerElement(cosmos.Int64(1), cosmos.Int64(2))},
		{Pages: onePagePerElement(cosmos.Int64(3))},
	}

	factory := NewFactory(partitions, unlimited(), 1<<20)
	source, err := factory(context.Background(), nil)
	require.NoError(t, err)

	var got []cosmos.Element
	for !source.IsDone() {
		page, err := source.Drain(context.Background(), 10)
		require.NoError(t, err)
		got = append(got, page.Elements...)
	}
	assert.Equal(t, []cosmos.Element{cosmos.Int64(1), cosmos.Int64(2), cosmos.Int64(3)}, got)
}

func TestSourceResumeFromCursor(t *testing.T) {
	partitions := []Partition{
		{Pages: onePagePerElement(cosmos.Int64(1))},
		{Pages: onePagePerElement(cosmos.Int64(2))},
	}
	factory := NewFactory(partitions, unlimited(), 1<<20)
	source, err := factory(context.Background(), nil)
	require.NoError(t, err)

	first, err := source.Drain(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, first.Cursor)

	resumed, err := factory(context.Background(), first.Cursor)
	require.NoError(t, err)
	second, err := resumed.Drain(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []cosmos.Element{cosmos.Int64(2)}, second.Elements)
}

func TestRewrittenProjectionShape(t *testing.T) {
	projection := RewrittenProjection([]cosmos.Element{cosmos.String("alpha")}, cosmos.Int64(1))
	items, ok := projection.Get("groupByItems")
	require.True(t, ok)
	arr := items.(cosmos.Array)
	require.Len(t, arr, 1)
	item, ok := arr[0].(*cosmos.Object).Get("item")
	require.True(t, ok)
	assert.Equal(t, cosmos.String("alpha"), item)
}
