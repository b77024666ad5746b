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

// wireElement is a tagged JSON envelope for a cosmos.Element, used wherever
// an aggregator or DistinctMap needs to persist an arbitrary element inside
// a cursor string (§4.2, §4.4).
type wireElement struct {
	Tag   string          `json:"tag"`
	Value json.RawMessage `json:"value,omitempty"`
}

func encodeElement(e cosmos.Element) string {
	w := toWireElement(e)
	b, err := json.Marshal(w)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeElement(s string) (cosmos.Element, error) {
	if s == "" {
		return cosmos.Undefined{}, nil
	}
	var w wireElement
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return nil, err
	}
	return fromWireElement(w)
}

func toWireElement(e cosmos.Element) wireElement {
	switch v := e.(type) {
	case cosmos.Undefined, nil:
		return wireElement{Tag: "undefined"}
	case cosmos.Null:
		return wireElement{Tag: "null"}
	case cosmos.Bool:
		raw, _ := json.Marshal(bool(v))
		return wireElement{Tag: "bool", Value: raw}
	case cosmos.Int64:
		raw, _ := json.Marshal(int64(v))
		return wireElement{Tag: "int64", Value: raw}
	case cosmos.Float64:
		raw, _ := json.Marshal(float64(v))
		return wireElement{Tag: "float64", Value: raw}
	case cosmos.String:
		raw, _ := json.Marshal(string(v))
		return wireElement{Tag: "string", Value: raw}
	case cosmos.Array:
		wires := make([]wireElement, len(v))
		for i, elem := range v {
			wires[i] = toWireElement(elem)
		}
		raw, _ := json.Marshal(wires)
		return wireElement{Tag: "array", Value: raw}
	case *cosmos.Object:
		fields := make(map[string]wireElement, len(v.Keys))
		for _, k := range v.Keys {
			val, _ := v.Get(k)
			fields[k] = toWireElement(val)
		}
		raw, _ := json.Marshal(struct {
			Keys   []string               `json:"keys"`
			Fields map[string]wireElement `json:"fields"`
		}{Keys: v.Keys, Fields: fields})
		return wireElement{Tag: "object", Value: raw}
	default:
		return wireElement{Tag: "undefined"}
	}
}

func fromWireElement(w wireElement) (cosmos.Element, error) {
	switch w.Tag {
	case "", "undefined":
		return cosmos.Undefined{}, nil
	case "null":
		return cosmos.Null{}, nil
	case "bool":
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return nil, err
		}
		return cosmos.Bool(b), nil
	case "int64":
		var n int64
		if err := json.Unmarshal(w.Value, &n); err != nil {
			return nil, err
		}
		return cosmos.Int64(n), nil
	case "float64":
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return nil, err
		}
		return cosmos.Float64(f), nil
	case "string":
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, err
		}
		return cosmos.String(s), nil
	case "array":
		var wires []wireElement
		if err := json.Unmarshal(w.Value, &wires); err != nil {
			return nil, err
		}
		arr := make(cosmos.Array, len(wires))
		for i, wv := range wires {
			elem, err := fromWireElement(wv)
			if err != nil {
				return nil, err
			}
			arr[i] = elem
		}
		return arr, nil
	case "object":
		var payload struct {
			Keys   []string               `json:"keys"`
			Fields map[string]wireElement `json:"fields"`
		}
		if err := json.Unmarshal(w.Value, &payload); err != nil {
			return nil, err
		}
		obj := cosmos.NewObject()
		for _, k := range payload.Keys {
			elem, err := fromWireElement(payload.Fields[k])
			if err != nil {
				return nil, err
			}
			obj.Set(k, elem)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unknown wire element tag %q", w.Tag)
	}
}
