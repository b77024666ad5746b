// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

// AggregateType names a column aggregator kind (§4.4). A nil/absent entry in
// a GroupByAliasToAggregateType mapping means "Scalar passthrough".
type AggregateType int

const (
	Scalar AggregateType = iota
	Count
	Sum
	Min
	Max
	Average
)

func (a AggregateType) String() string {
	switch a {
	case Scalar:
		return "Scalar"
	case Count:
		return "Count"
	case Sum:
		return "Sum"
	case Min:
		return "Min"
	case Max:
		return "Max"
	case Average:
		return "Average"
	default:
		return "Unknown"
	}
}

// columnAggregator is the per-alias aggregator contract (§4.4).
type columnAggregator interface {
	AddValue(v cosmos.Element)
	GetResult() cosmos.Element
	GetCursor() string
}

func newColumnAggregator(kind AggregateType, cursor string) (columnAggregator, error) {
	switch kind {
	case Scalar:
		return newScalarAggregator(cursor)
	case Count:
		return newCountAggregator(cursor)
	case Sum:
		return newSumAggregator(cursor)
	case Min:
		return newExtremumAggregator(true, cursor)
	case Max:
		return newExtremumAggregator(false, cursor)
	case Average:
		return newAverageAggregator(cursor)
	default:
		return nil, newFatal(fmt.Sprintf("AggregateType: unknown value %d", int(kind)))
	}
}

// --- Scalar: passthrough, first-seen wins. ---

type scalarAggregator struct {
	hasValue bool
	value    cosmos.Element
}

type scalarState struct {
	HasValue bool   `json:"hasValue"`
	Value    string `json:"value,omitempty"`
}

func newScalarAggregator(cursor string) (*scalarAggregator, error) {
	a := &scalarAggregator{}
	if cursor == "" {
		return a, nil
	}
	var st scalarState
	if err := json.Unmarshal([]byte(cursor), &st); err != nil {
		return nil, newBadRequest("malformed Scalar aggregator cursor", cursor)
	}
	a.hasValue = st.HasValue
	if st.HasValue {
		v, err := decodeElement(st.Value)
		if err != nil {
			return nil, newBadRequest("malformed Scalar aggregator cursor value", cursor)
		}
		a.value = v
	}
	return a, nil
}

func (a *scalarAggregator) AddValue(v cosmos.Element) {
	if a.hasValue {
		return
	}
	if _, isUndefined := v.(cosmos.Undefined); isUndefined {
		return
	}
	a.hasValue = true
	a.value = v
}

func (a *scalarAggregator) GetResult() cosmos.Element {
	if !a.hasValue {
		return cosmos.Undefined{}
	}
	return a.value
}

func (a *scalarAggregator) GetCursor() string {
	st := scalarState{HasValue: a.hasValue}
	if a.hasValue {
		st.Value = encodeElement(a.value)
	}
	b, _ := json.Marshal(st)
	return string(b)
}

// --- Count: running integer sum of {item:n}.item. ---

type countAggregator struct {
	count int64
}

func newCountAggregator(cursor string) (*countAggregator, error) {
	a := &countAggregator{}
	if cursor == "" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(cursor), &a.count); err != nil {
		return nil, newBadRequest("malformed Count aggregator cursor", cursor)
	}
	return a, nil
}

func (a *countAggregator) AddValue(v cosmos.Element) {
	n, ok := v.(cosmos.Int64)
	if !ok {
		if f, ok := v.(cosmos.Float64); ok {
			a.count += int64(f)
			return
		}
		return
	}
	a.count += int64(n)
}

func (a *countAggregator) GetResult() cosmos.Element { return cosmos.Int64(a.count) }

func (a *countAggregator) GetCursor() string {
	b, _ := json.Marshal(a.count)
	return string(b)
}

// --- Sum: arithmetic sum; sticky Undefined on non-numeric input. ---

type sumAggregator struct {
	hasSeen bool
	sticky  bool
	sum     float64
}

type sumState struct {
	HasSeen bool    `json:"hasSeen"`
	Sticky  bool    `json:"sticky"`
	Sum     float64 `json:"sum"`
}

func newSumAggregator(cursor string) (*sumAggregator, error) {
	a := &sumAggregator{}
	if cursor == "" {
		return a, nil
	}
	var st sumState
	if err := json.Unmarshal([]byte(cursor), &st); err != nil {
		return nil, newBadRequest("malformed Sum aggregator cursor", cursor)
	}
	a.hasSeen, a.sticky, a.sum = st.HasSeen, st.Sticky, st.Sum
	return a, nil
}

func (a *sumAggregator) AddValue(v cosmos.Element) {
	if a.sticky {
		return
	}
	a.hasSeen = true
	if !cosmos.IsNumeric(v) {
		a.sticky = true
		return
	}
	a.sum += numericFloat(v)
}

func (a *sumAggregator) GetResult() cosmos.Element {
	if !a.hasSeen || a.sticky {
		return cosmos.Undefined{}
	}
	return cosmos.Float64(a.sum)
}

func (a *sumAggregator) GetCursor() string {
	st := sumState{HasSeen: a.hasSeen, Sticky: a.sticky, Sum: a.sum}
	b, _ := json.Marshal(st)
	return string(b)
}

// --- Min / Max: running extremum under cosmos.Compare's total order. ---

type extremumAggregator struct {
	isMin    bool
	hasValue bool
	value    cosmos.Element
}

func newExtremumAggregator(isMin bool, cursor string) (*extremumAggregator, error) {
	a := &extremumAggregator{isMin: isMin}
	if cursor == "" {
		return a, nil
	}
	var st scalarState
	if err := json.Unmarshal([]byte(cursor), &st); err != nil {
		return nil, newBadRequest("malformed Min/Max aggregator cursor", cursor)
	}
	a.hasValue = st.HasValue
	if st.HasValue {
		v, err := decodeElement(st.Value)
		if err != nil {
			return nil, newBadRequest("malformed Min/Max aggregator cursor value", cursor)
		}
		a.value = v
	}
	return a, nil
}

func (a *extremumAggregator) AddValue(v cosmos.Element) {
	if _, isUndefined := v.(cosmos.Undefined); isUndefined {
		return
	}
	if !a.hasValue {
		a.hasValue = true
		a.value = v
		return
	}
	cmp := cosmos.Compare(v, a.value)
	if (a.isMin && cmp < 0) || (!a.isMin && cmp > 0) {
		a.value = v
	}
}

func (a *extremumAggregator) GetResult() cosmos.Element {
	if !a.hasValue {
		return cosmos.Undefined{}
	}
	return a.value
}

func (a *extremumAggregator) GetCursor() string {
	st := scalarState{HasValue: a.hasValue}
	if a.hasValue {
		st.Value = encodeElement(a.value)
	}
	b, _ := json.Marshal(st)
	return string(b)
}

// --- Average: pair (sum, count). ---

type averageAggregator struct {
	sum   float64
	count int64
}

type averageState struct {
	Sum   float64 `json:"sum"`
	Count int64   `json:"count"`
}

func newAverageAggregator(cursor string) (*averageAggregator, error) {
	a := &averageAggregator{}
	if cursor == "" {
		return a, nil
	}
	var st averageState
	if err := json.Unmarshal([]byte(cursor), &st); err != nil {
		return nil, newBadRequest("malformed Average aggregator cursor", cursor)
	}
	a.sum, a.count = st.Sum, st.Count
	return a, nil
}

func (a *averageAggregator) AddValue(v cosmos.Element) {
	if !cosmos.IsNumeric(v) {
		return
	}
	a.sum += numericFloat(v)
	a.count++
}

func (a *averageAggregator) GetResult() cosmos.Element {
	if a.count == 0 {
		return cosmos.Undefined{}
	}
	return cosmos.Float64(a.sum / float64(a.count))
}

func (a *averageAggregator) GetCursor() string {
	st := averageState{Sum: a.sum, Count: a.count}
	b, _ := json.Marshal(st)
	return string(b)
}

func numericFloat(v cosmos.Element) float64 {
	switch n := v.(type) {
	case cosmos.Int64:
		return float64(n)
	case cosmos.Float64:
		return float64(n)
	default:
		return 0
	}
}
