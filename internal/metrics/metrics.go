// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes per-stage Prometheus counters. cc-backend's own
// code only imports the Prometheus *query-API* client
// (internal/metricdata/prometheus.go) to read an external Prometheus; this
// package additionally exercises the instrumentation half of the same
// dependency family (github.com/prometheus/client_golang/prometheus) to
// expose the engine's own stage-level counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// StageMetrics are the counters a Distinct or GroupBy stage updates on every
// Drain call. They are deliberately coarse: per-document histograms would
// dwarf the cost of the work they measure.
type StageMetrics struct {
	PagesDrained       prometheus.Counter
	ElementsAdmitted   prometheus.Counter
	ElementsSuppressed prometheus.Counter
	GroupsEmitted      prometheus.Counter
}

// Registry is the process-wide collector registry stage metrics register
// into. A dedicated registry (rather than prometheus.DefaultRegisterer)
// keeps repeated stage creation in tests from panicking on duplicate
// registration.
var Registry = prometheus.NewRegistry()

// NewStageMetrics registers (or reuses, if already registered under this
// stage kind) the counter family for one kind of stage ("distinct" or
// "groupby"). Every stage instance of the same kind shares the same
// counters, consistent with them being process-wide Prometheus metrics
// rather than per-query state.
func NewStageMetrics(stageKind string) *StageMetrics {
	labels := prometheus.Labels{"stage": stageKind}

	pagesDrained := pagesDrainedVec.With(labels)
	elementsAdmitted := elementsAdmittedVec.With(labels)
	elementsSuppressed := elementsSuppressedVec.With(labels)
	groupsEmitted := groupsEmittedVec.With(labels)

	return &StageMetrics{
		PagesDrained:       pagesDrained,
		ElementsAdmitted:   elementsAdmitted,
		ElementsSuppressed: elementsSuppressed,
		GroupsEmitted:      groupsEmitted,
	}
}

var (
	pagesDrainedVec = registerCounterVec("queryexec_stage_pages_drained_total",
		"Number of Drain calls returned by a pipeline stage.")
	elementsAdmittedVec = registerCounterVec("queryexec_stage_elements_admitted_total",
		"Number of elements a pipeline stage returned to its caller.")
	elementsSuppressedVec = registerCounterVec("queryexec_stage_elements_suppressed_total",
		"Number of elements a pipeline stage dropped (duplicates, held-back groups).")
	groupsEmittedVec = registerCounterVec("queryexec_stage_groups_emitted_total",
		"Number of grouping-key results a GROUP BY stage has emitted.")
)

func registerCounterVec(name, help string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, []string{"stage"})
	Registry.MustRegister(vec)
	return vec
}
