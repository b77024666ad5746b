// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command queryexec-demo wires the Distinct and GroupBy pipeline stages to
// an in-memory, rate-limited, cached partition source and runs one query of
// each kind to completion, printing the resulting pages. It exists to
// exercise internal/pipeline end-to-end without a real document store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ClusterCockpit/cc-queryexec/internal/config"
	"github.com/ClusterCockpit/cc-queryexec/internal/demosource"
	"github.com/ClusterCockpit/cc-queryexec/internal/metrics"
	"github.com/ClusterCockpit/cc-queryexec/internal/pipeline"
	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

func main() {
	cliInit()
	cclog.Init(flagLogLevel, flagLogDateTime)

	if err := config.Init(flagConfigFile); err != nil {
		cclog.Abortf("config: %s", err.Error())
	}

	if flagGops || config.Keys.EnableGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			cclog.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if config.Keys.MetricsListenAddr != "" {
		go serveMetrics(config.Keys.MetricsListenAddr)
	}

	checkpoints := startCheckpointScheduler()
	defer checkpoints.Shutdown()

	runDistinctDemo()
	runGroupByDemo()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	cclog.Infof("serving Prometheus metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		cclog.Errorf("metrics server: %s", err.Error())
	}
}

func runDistinctDemo() {
	partitions := []demosource.Partition{
		{Pages: []pipeline.Page{
			{Success: true, Elements: []cosmos.Element{cosmos.Int64(1), cosmos.Int64(2), cosmos.Int64(1)}},
		}},
		{Pages: []pipeline.Page{
			{Success: true, Elements: []cosmos.Element{cosmos.Int64(2), cosmos.Int64(3)}},
		}},
	}
	limiter := rate.NewLimiter(rate.Limit(50), 10)
	source := demosource.NewFactory(partitions, limiter, 4<<20)

	stage, err := pipeline.CreateDistinctStage(context.Background(), pipeline.DistinctStageParameters{
		ExecutionEnvironment: pipeline.Client,
		DistinctQueryType:    pipeline.Unordered,
		CreateSourceCallback: source,
	})
	if err != nil {
		cclog.Abortf("distinct demo: %s", err.Error())
	}

	for !stage.IsDone() {
		page, err := stage.Drain(context.Background(), config.Keys.DefaultPageSize)
		if err != nil {
			cclog.Abortf("distinct demo: drain: %s", err.Error())
		}
		if page.Cursor != nil {
			lastIssuedCursor = page.Cursor
		}
		logPage("distinct", page)
	}
}

func runGroupByDemo() {
	sumKind := pipeline.Sum
	spec := pipeline.AggregateSpec{
		OrderedAliases:  []string{"team", "total"},
		AliasAggregates: map[string]*pipeline.AggregateType{"total": &sumKind},
	}

	partitions := []demosource.Partition{
		{Pages: []pipeline.Page{{Success: true, Elements: []cosmos.Element{
			demosource.RewrittenProjection(
				[]cosmos.Element{cosmos.String("alpha")},
				teamPayload("alpha", 3),
			),
		}}}},
		{Pages: []pipeline.Page{{Success: true, Elements: []cosmos.Element{
			demosource.RewrittenProjection(
				[]cosmos.Element{cosmos.String("alpha")},
				teamPayload("alpha", 7),
			),
			demosource.RewrittenProjection(
				[]cosmos.Element{cosmos.String("beta")},
				teamPayload("beta", 5),
			),
		}}}},
	}
	limiter := rate.NewLimiter(rate.Limit(50), 10)
	source := demosource.NewFactory(partitions, limiter, 4<<20)

	var guard pipeline.CardinalityGuard
	if config.Keys.MaxGroupCount > 0 {
		guard = maxGroupGuard{limit: config.Keys.MaxGroupCount}
	}

	stage, err := pipeline.CreateGroupByStage(context.Background(), pipeline.GroupByStageParameters{
		ExecutionEnvironment: pipeline.Client,
		AggregateSpec:        spec,
		CardinalityGuard:     guard,
		CreateSourceCallback: source,
	})
	if err != nil {
		cclog.Abortf("groupby demo: %s", err.Error())
	}

	for !stage.IsDone() {
		page, err := stage.Drain(context.Background(), config.Keys.DefaultPageSize)
		if err != nil {
			cclog.Abortf("groupby demo: drain: %s", err.Error())
		}
		if page.Cursor != nil {
			lastIssuedCursor = page.Cursor
		}
		logPage("groupby", page)
	}
}

func teamPayload(team string, total int64) *cosmos.Object {
	o := cosmos.NewObject()
	o.Set("team", cosmos.String(team))
	o.Set("total", demosource.GroupByItem(cosmos.Int64(total)))
	return o
}

type maxGroupGuard struct{ limit int }

func (g maxGroupGuard) AdmitGroup(groupCount int) error {
	if groupCount > g.limit {
		return fmt.Errorf("queryexec-demo: group count %d exceeds configured limit %d", groupCount, g.limit)
	}
	return nil
}

func logPage(stage string, page pipeline.Page) {
	b, _ := json.Marshal(page.Elements)
	cclog.Infof("%s: page success=%v elements=%s", stage, page.Success, string(b))
}

func startCheckpointScheduler() checkpointScheduler {
	return newCheckpointScheduler(time.Duration(config.Keys.CheckpointEverySeconds) * time.Second)
}
