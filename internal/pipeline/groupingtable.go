// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"encoding/json"
	"math/big"
	"sort"

	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
	"github.com/ClusterCockpit/cc-queryexec/pkg/fingerprint"
)

// RewrittenProjection is the upstream-produced {groupByItems, payload}
// shape every source element must already be in by the time it reaches
// GroupingTable.AddPayload (§3, §4.5). Parsing/validating the raw element
// into this shape happens in internal/pipeline/rewritten.
type RewrittenProjection struct {
	GroupByItems []cosmos.Element
	Payload      cosmos.Element
}

// CardinalityGuard is the pluggable extension point §5 calls for ("the
// design must permit plugging one in") without mandating a policy. It is
// consulted once per newly-admitted grouping key, before that key's
// aggregator is created; returning an error rejects the query instead of
// growing the table further.
type CardinalityGuard interface {
	AdmitGroup(groupCount int) error
}

// NoCardinalityGuard never rejects a group. It is the default.
type NoCardinalityGuard struct{}

func (NoCardinalityGuard) AdmitGroup(int) error { return nil }

// GroupingTable maps a grouping-key fingerprint to its aggregator (§3,
// §4.5). Iteration order is insertion order via a sidecar slice, so Drain
// is deterministic under a fixed sequence of AddPayload calls regardless of
// Go's randomized map iteration (§9 Design Notes).
type GroupingTable struct {
	spec  AggregateSpec
	guard CardinalityGuard
	keys  []fingerprint.UInt128
	byKey map[fingerprint.UInt128]*SingleGroupAggregator
}

// NewGroupingTable builds an empty table, or restores one from a cursor
// previously returned by GetCursor (§4.5 CreateFromCursor). A restored table
// iterates its groups in ascending order of the cursor's key strings.
func NewGroupingTable(spec AggregateSpec, guard CardinalityGuard, cursor string) (*GroupingTable, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if guard == nil {
		guard = NoCardinalityGuard{}
	}

	t := &GroupingTable{
		spec:  spec,
		guard: guard,
		byKey: map[fingerprint.UInt128]*SingleGroupAggregator{},
	}

	if cursor == "" {
		return t, nil
	}

	var entries map[string]string
	if err := json.Unmarshal([]byte(cursor), &entries); err != nil {
		return nil, newBadRequest("malformed GroupingTable cursor", cursor)
	}
	decKeys := make([]string, 0, len(entries))
	for decKey := range entries {
		decKeys = append(decKeys, decKey)
	}
	sort.Strings(decKeys)
	for _, decKey := range decKeys {
		aggCursor := entries[decKey]
		key, err := parseDecimalFingerprint(decKey)
		if err != nil {
			return nil, newBadRequest("malformed GroupingTable cursor key", decKey)
		}
		agg, err := NewSingleGroupAggregator(spec, aggCursor)
		if err != nil {
			return nil, err
		}
		t.keys = append(t.keys, key)
		t.byKey[key] = agg
	}
	return t, nil
}

// Count returns the number of groups currently resident in the table.
func (t *GroupingTable) Count() int { return len(t.keys) }

// AddPayload admits rewritten into the table, creating a fresh aggregator
// for its grouping key the first time that key is seen (§4.5). A group key
// produced once is never later re-admitted under a different aggregator
// instance: the same *SingleGroupAggregator is reused for the table's
// lifetime.
func (t *GroupingTable) AddPayload(rewritten RewrittenProjection) error {
	key := fingerprint.OfGroupByItems(rewritten.GroupByItems)

	agg, ok := t.byKey[key]
	if !ok {
		if err := t.guard.AdmitGroup(len(t.keys) + 1); err != nil {
			return err
		}
		var err error
		agg, err = NewSingleGroupAggregator(t.spec, "")
		if err != nil {
			return err
		}
		t.byKey[key] = agg
		t.keys = append(t.keys, key)
	}

	return agg.AddValues(rewritten.Payload)
}

// Drain removes the first maxItemCount keys in iteration order and returns
// each aggregator's GetResult in the same order (§4.5). Drain is
// destructive: a drained group cannot be re-entered.
func (t *GroupingTable) Drain(maxItemCount int) []cosmos.Element {
	n := maxItemCount
	if n > len(t.keys) {
		n = len(t.keys)
	}
	if n <= 0 {
		return nil
	}

	results := make([]cosmos.Element, n)
	for i := 0; i < n; i++ {
		key := t.keys[i]
		results[i] = t.byKey[key].GetResult()
		delete(t.byKey, key)
	}
	t.keys = t.keys[n:]
	return results
}

// GetCursor serializes {decimalKey -> aggregator.GetCursor()} over every
// still-resident group, using the decimal textual form of the UInt128 key
// required by §6.
func (t *GroupingTable) GetCursor() string {
	entries := make(map[string]string, len(t.keys))
	for _, key := range t.keys {
		entries[formatDecimalFingerprint(key)] = t.byKey[key].GetCursor()
	}
	b, _ := json.Marshal(entries)
	return string(b)
}

func formatDecimalFingerprint(fp fingerprint.UInt128) string {
	hi := new(big.Int).SetUint64(fp.Hi)
	hi.Lsh(hi, 64)
	lo := new(big.Int).SetUint64(fp.Lo)
	return hi.Or(hi, lo).String()
}

func parseDecimalFingerprint(s string) (fingerprint.UInt128, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fingerprint.UInt128{}, newBadRequest("not a decimal UInt128", s)
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(n, mask)
	hi := new(big.Int).Rsh(n, 64)
	return fingerprint.UInt128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}
