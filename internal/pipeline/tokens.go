// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import "encoding/json"

// DistinctContinuationToken is the textual, round-trippable cursor format
// for the Distinct stage (§3, §6).
type DistinctContinuationToken struct {
	SourceToken      *string `json:"sourceToken"`
	DistinctMapToken *string `json:"distinctMapToken"`
}

func (t DistinctContinuationToken) String() string {
	b, _ := json.Marshal(t)
	return string(b)
}

func parseDistinctContinuationToken(s string) (DistinctContinuationToken, error) {
	var t DistinctContinuationToken
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return DistinctContinuationToken{}, err
	}
	return t, nil
}

// GroupByContinuationToken is the textual, round-trippable cursor format for
// the GroupBy stage (§6).
type GroupByContinuationToken struct {
	SourceToken        *string `json:"sourceToken"`
	GroupingTableToken *string `json:"groupingTableToken"`
}

func (t GroupByContinuationToken) String() string {
	b, _ := json.Marshal(t)
	return string(b)
}

func parseGroupByContinuationToken(s string) (GroupByContinuationToken, error) {
	var t GroupByContinuationToken
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return GroupByContinuationToken{}, err
	}
	return t, nil
}
