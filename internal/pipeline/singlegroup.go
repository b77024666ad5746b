// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"encoding/json"

	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

// selectValueAlias is the internal key used when hasSelectValue is true: the
// rewritten payload is the single aggregated value itself, with no alias of
// its own in the source projection (§4.4).
const selectValueAlias = "$selectValue"

// AggregateSpec describes, for one query, the ordered output aliases and
// which column-aggregator kind (if any) each uses. A nil entry for an alias
// means Scalar passthrough (§4.4, §6).
type AggregateSpec struct {
	OrderedAliases  []string
	AliasAggregates map[string]*AggregateType
	HasSelectValue  bool
}

// validate enforces the Open Question resolution in §9: hasSelectValue with
// more than one alias is rejected at stage-creation time.
func (s AggregateSpec) validate() error {
	if s.HasSelectValue && len(s.OrderedAliases) > 1 {
		return newBadRequest("hasSelectValue is only valid with exactly one output alias", "")
	}
	return nil
}

// SingleGroupAggregator is the composite aggregator holding per-alias state
// for one grouping key (§3, §4.4).
type SingleGroupAggregator struct {
	spec        AggregateSpec
	aggregators map[string]columnAggregator
}

// NewSingleGroupAggregator builds a fresh aggregator, or restores one from a
// cursor previously returned by GetCursor.
func NewSingleGroupAggregator(spec AggregateSpec, cursor string) (*SingleGroupAggregator, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	var cursors map[string]string
	if cursor != "" {
		if err := json.Unmarshal([]byte(cursor), &cursors); err != nil {
			return nil, newBadRequest("malformed SingleGroupAggregator cursor", cursor)
		}
	}

	g := &SingleGroupAggregator{spec: spec, aggregators: map[string]columnAggregator{}}

	aliases := spec.OrderedAliases
	if spec.HasSelectValue {
		aliases = []string{selectValueAlias}
	}

	for _, alias := range aliases {
		// With hasSelectValue the single output alias names the aggregate
		// kind, while its state is keyed under selectValueAlias.
		kindAlias := alias
		if spec.HasSelectValue && len(spec.OrderedAliases) == 1 {
			kindAlias = spec.OrderedAliases[0]
		}
		kind := Scalar
		if t, ok := spec.AliasAggregates[kindAlias]; ok && t != nil {
			kind = *t
		}
		agg, err := newColumnAggregator(kind, cursors[alias])
		if err != nil {
			return nil, err
		}
		g.aggregators[alias] = agg
	}
	return g, nil
}

// AddValues feeds one rewritten payload into the per-alias aggregators
// (§4.4).
func (g *SingleGroupAggregator) AddValues(payload cosmos.Element) error {
	if g.spec.HasSelectValue {
		g.aggregators[selectValueAlias].AddValue(payload)
		return nil
	}

	obj, ok := payload.(*cosmos.Object)
	if !ok {
		return newBadRequest("rewritten payload must be an object unless hasSelectValue", "")
	}

	for _, alias := range g.spec.OrderedAliases {
		agg := g.aggregators[alias]
		raw, present := obj.Get(alias)

		kindPtr, hasKind := g.spec.AliasAggregates[alias]
		isAggregateKind := hasKind && kindPtr != nil

		if !isAggregateKind {
			if !present {
				agg.AddValue(cosmos.Undefined{})
				continue
			}
			agg.AddValue(raw)
			continue
		}

		if !present {
			agg.AddValue(cosmos.Undefined{})
			continue
		}
		item, ok := raw.(*cosmos.Object)
		if !ok {
			agg.AddValue(cosmos.Undefined{})
			continue
		}
		v, has := item.Get("item")
		if !has {
			agg.AddValue(cosmos.Undefined{})
			continue
		}
		agg.AddValue(v)
	}
	return nil
}

// GetResult materializes the aggregated value for this group (§4.4).
func (g *SingleGroupAggregator) GetResult() cosmos.Element {
	if g.spec.HasSelectValue {
		return g.aggregators[selectValueAlias].GetResult()
	}

	obj := cosmos.NewObject()
	for _, alias := range g.spec.OrderedAliases {
		result := g.aggregators[alias].GetResult()
		if _, isUndefined := result.(cosmos.Undefined); isUndefined {
			continue
		}
		obj.Set(alias, result)
	}
	return obj
}

// GetCursor serializes every per-alias aggregator's internal state, in
// alias order (§4.4).
func (g *SingleGroupAggregator) GetCursor() string {
	aliases := g.spec.OrderedAliases
	if g.spec.HasSelectValue {
		aliases = []string{selectValueAlias}
	}
	cursors := make(map[string]string, len(aliases))
	for _, alias := range aliases {
		cursors[alias] = g.aggregators[alias].GetCursor()
	}
	b, _ := json.Marshal(cursors)
	return string(b)
}
