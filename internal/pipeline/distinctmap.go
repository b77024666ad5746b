// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
	"github.com/ClusterCockpit/cc-queryexec/pkg/fingerprint"
)

// DistinctQueryType selects a DistinctMap variant (§4.2).
type DistinctQueryType int

const (
	// Unordered keeps every fingerprint ever seen. Exact, but its cursor
	// snapshots the whole set.
	Unordered DistinctQueryType = iota
	// Ordered relies on the upstream rewrite proving the source is sorted
	// by the distinct key; only the last-seen fingerprint is kept.
	Ordered
)

func (t DistinctQueryType) String() string {
	switch t {
	case Unordered:
		return "Unordered"
	case Ordered:
		return "Ordered"
	default:
		return "Unknown"
	}
}

// DistinctMap is the per-stage structure tracking which documents have
// already been emitted (§3, §4.2). It carries no internal locking: its
// enclosing stage owns it exclusively (§5).
type DistinctMap interface {
	// Add returns admitted=true the first time a canonically-equal element
	// is seen (idempotent on repeats, §3).
	Add(e cosmos.Element) (admitted bool, fp fingerprint.UInt128)
	// GetCursor serializes the map's current state (§4.2).
	GetCursor() string
}

type unorderedDistinctMap struct {
	seen map[fingerprint.UInt128]struct{}
}

// NewDistinctMap builds a fresh DistinctMap of the requested variant,
// optionally restoring it from a previously-issued cursor.
func NewDistinctMap(queryType DistinctQueryType, cursor *string) (DistinctMap, error) {
	switch queryType {
	case Unordered:
		return newUnorderedDistinctMap(cursor)
	case Ordered:
		return newOrderedDistinctMap(cursor)
	default:
		return nil, newFatal(fmt.Sprintf("DistinctQueryType: unknown value %d", int(queryType)))
	}
}

func newUnorderedDistinctMap(cursor *string) (*unorderedDistinctMap, error) {
	m := &unorderedDistinctMap{seen: map[fingerprint.UInt128]struct{}{}}
	if cursor == nil || *cursor == "" {
		return m, nil
	}

	var hexes []string
	if err := json.Unmarshal([]byte(*cursor), &hexes); err != nil {
		return nil, newBadRequest("malformed unordered distinct map cursor", *cursor)
	}
	for _, h := range hexes {
		fp, err := parseHexFingerprint(h)
		if err != nil {
			return nil, newBadRequest("malformed fingerprint in distinct map cursor", *cursor)
		}
		m.seen[fp] = struct{}{}
	}
	return m, nil
}

func (m *unorderedDistinctMap) Add(e cosmos.Element) (bool, fingerprint.UInt128) {
	fp := fingerprint.Of(e)
	if _, ok := m.seen[fp]; ok {
		return false, fp
	}
	m.seen[fp] = struct{}{}
	return true, fp
}

func (m *unorderedDistinctMap) GetCursor() string {
	hexes := make([]string, 0, len(m.seen))
	for fp := range m.seen {
		hexes = append(hexes, formatHexFingerprint(fp))
	}
	b, err := json.Marshal(hexes)
	if err != nil {
		// json.Marshal on a []string cannot fail.
		cclog.Fatalf("distinctmap: marshal cursor: %s", err.Error())
	}
	return string(b)
}

// orderedDistinctMap keeps only the last-seen fingerprint, relying on the
// upstream rewrite emitting documents sorted by the distinct key (§4.2).
type orderedDistinctMap struct {
	hasLast bool
	last    fingerprint.UInt128
}

func newOrderedDistinctMap(cursor *string) (*orderedDistinctMap, error) {
	m := &orderedDistinctMap{}
	if cursor == nil || *cursor == "" {
		return m, nil
	}
	fp, err := parseHexFingerprint(*cursor)
	if err != nil {
		return nil, newBadRequest("malformed ordered distinct map cursor", *cursor)
	}
	m.hasLast = true
	m.last = fp
	return m, nil
}

func (m *orderedDistinctMap) Add(e cosmos.Element) (bool, fingerprint.UInt128) {
	fp := fingerprint.Of(e)
	if m.hasLast && fp.Equal(m.last) {
		return false, fp
	}
	m.hasLast = true
	m.last = fp
	return true, fp
}

func (m *orderedDistinctMap) GetCursor() string {
	if !m.hasLast {
		return ""
	}
	return formatHexFingerprint(m.last)
}

func formatHexFingerprint(fp fingerprint.UInt128) string {
	return strconv.FormatUint(fp.Hi, 16) + ":" + strconv.FormatUint(fp.Lo, 16)
}

func parseHexFingerprint(s string) (fingerprint.UInt128, error) {
	var hiStr, loStr string
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			hiStr, loStr = s[:i], s[i+1:]
			break
		}
	}
	if hiStr == "" || loStr == "" {
		return fingerprint.UInt128{}, fmt.Errorf("expected \"hi:lo\", got %q", s)
	}
	hi, err := strconv.ParseUint(hiStr, 16, 64)
	if err != nil {
		return fingerprint.UInt128{}, err
	}
	lo, err := strconv.ParseUint(loStr, 16, 64)
	if err != nil {
		return fingerprint.UInt128{}, err
	}
	return fingerprint.UInt128{Hi: hi, Lo: lo}, nil
}
