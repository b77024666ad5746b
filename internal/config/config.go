// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config holds the process-wide tunables for the queryexec-demo
// program: a package-level Keys struct carrying defaults, optionally
// overridden by a JSON file passed on the command line (the same
// read-validate-merge shape as cc-backend's internal/config/config.go).
package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// ProgramConfig is the merged shape of Keys.
type ProgramConfig struct {
	// MetricsListenAddr is where the Prometheus /metrics handler binds, e.g.
	// "localhost:9091". Empty disables the metrics server entirely.
	MetricsListenAddr string `json:"metricsListenAddr"`

	// DefaultPageSize bounds how many elements a Drain call requests from a
	// stage when the caller does not specify one explicitly.
	DefaultPageSize int `json:"defaultPageSize"`

	// MaxGroupCount, if positive, is wired into a CardinalityGuard that
	// rejects a GROUP BY query once this many distinct groups have been
	// admitted. Zero means unbounded.
	MaxGroupCount int `json:"maxGroupCount"`

	// CheckpointEverySeconds controls how often the demo program's
	// checkpoint job persists the current query cursor.
	CheckpointEverySeconds int `json:"checkpointEverySeconds"`

	// EnableGops toggles the gops diagnostics agent.
	EnableGops bool `json:"enableGops"`
}

// Keys holds the program configuration currently in effect.
var Keys = ProgramConfig{
	MetricsListenAddr:      "localhost:9091",
	DefaultPageSize:        100,
	MaxGroupCount:          0,
	CheckpointEverySeconds: 30,
	EnableGops:             false,
}

//go:embed config.schema.json
var schemaFiles embed.FS

func load(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

func init() {
	jsonschema.Loaders["embedFS"] = load
}

// Init merges flagConfigFile over Keys, after validating it against the
// embedded JSON Schema. A missing file is not an error: Keys keeps its
// defaults (mirrors cc-backend's internal/config/config.go Init).
func Init(flagConfigFile string) error {
	if flagConfigFile == "" {
		return nil
	}
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", flagConfigFile, err)
	}

	schema, err := jsonschema.Compile("embedFS://config.schema.json")
	if err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("config: %s is not valid JSON: %w", flagConfigFile, err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("config: %s failed validation: %w", flagConfigFile, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return fmt.Errorf("config: decode %s: %w", flagConfigFile, err)
	}

	cclog.Infof("config: loaded %s", flagConfigFile)
	return nil
}
