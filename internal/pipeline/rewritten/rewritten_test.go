// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package rewritten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

func TestParseValidDocument(t *testing.T) {
	proj, err := Parse([]byte(`{"groupByItems":[{"item":"alpha"}],"payload":{"team":"alpha","total":3}}`))
	require.NoError(t, err)

	require.Len(t, proj.GroupByItems, 1)
	assert.Equal(t, cosmos.String("alpha"), proj.GroupByItems[0])

	payload, ok := proj.Payload.(*cosmos.Object)
	require.True(t, ok)
	total, ok := payload.Get("total")
	require.True(t, ok)
	assert.Equal(t, cosmos.Int64(3), total)
}

func TestParseDistinguishesIntegerFromDouble(t *testing.T) {
	proj, err := Parse([]byte(`{"groupByItems":[{"item":1}],"payload":1.0}`))
	require.NoError(t, err)
	assert.Equal(t, cosmos.Int64(1), proj.GroupByItems[0])
	assert.Equal(t, cosmos.Float64(1.0), proj.Payload)
}

func TestParseRejectsMissingGroupByItems(t *testing.T) {
	_, err := Parse([]byte(`{"payload":1}`))
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseElementRoundTripsThroughSchema(t *testing.T) {
	payload := cosmos.NewObject()
	payload.Set("team", cosmos.String("beta"))
	payload.Set("total", cosmos.Float64(2.5))

	groupItem := cosmos.NewObject()
	groupItem.Set("item", cosmos.String("beta"))

	src := cosmos.NewObject()
	src.Set("groupByItems", cosmos.Array{groupItem})
	src.Set("payload", cosmos.Element(payload))

	proj, err := ParseElement(src)
	require.NoError(t, err)
	require.Len(t, proj.GroupByItems, 1)
	assert.Equal(t, cosmos.String("beta"), proj.GroupByItems[0])

	out, ok := proj.Payload.(*cosmos.Object)
	require.True(t, ok)
	total, _ := out.Get("total")
	assert.Equal(t, cosmos.Float64(2.5), total)
}

func TestParseElementRejectsMissingPayload(t *testing.T) {
	groupItem := cosmos.NewObject()
	groupItem.Set("item", cosmos.Int64(1))

	src := cosmos.NewObject()
	src.Set("groupByItems", cosmos.Array{groupItem})

	_, err := ParseElement(src)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestToCosmosObjectRebuildsGroupByItemShape(t *testing.T) {
	proj := Projection{
		GroupByItems: []cosmos.Element{cosmos.String("gamma")},
		Payload:      cosmos.Int64(9),
	}
	obj := proj.ToCosmosObject()

	rawItems, ok := obj.Get("groupByItems")
	require.True(t, ok)
	items, ok := rawItems.(cosmos.Array)
	require.True(t, ok)
	require.Len(t, items, 1)

	itemObj, ok := items[0].(*cosmos.Object)
	require.True(t, ok)
	item, ok := itemObj.Get("item")
	require.True(t, ok)
	assert.Equal(t, cosmos.String("gamma"), item)

	payload, ok := obj.Get("payload")
	require.True(t, ok)
	assert.Equal(t, cosmos.Int64(9), payload)
}
