// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// checkpointScheduler periodically persists the most recently issued query
// cursor, the way a long-running client would checkpoint progress so a
// crash can resume instead of restarting the query from scratch.
type checkpointScheduler struct {
	s gocron.Scheduler
}

var lastIssuedCursor *string

func newCheckpointScheduler(every time.Duration) checkpointScheduler {
	s, err := gocron.NewScheduler()
	if err != nil {
		cclog.Abortf("checkpoint scheduler: could not create gocron scheduler: %s", err.Error())
	}

	if every <= 0 {
		every = 30 * time.Second
	}

	if _, err := s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			if lastIssuedCursor == nil {
				return
			}
			cclog.Infof("checkpoint: cursor=%s", *lastIssuedCursor)
		}),
	); err != nil {
		cclog.Abortf("checkpoint scheduler: could not register job: %s", err.Error())
	}

	s.Start()
	return checkpointScheduler{s: s}
}

func (c checkpointScheduler) Shutdown() {
	if err := c.s.Shutdown(); err != nil {
		cclog.Warnf("checkpoint scheduler: shutdown: %s", err.Error())
	}
}
