// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rewritten turns a raw JSON document -- the upstream
// {groupByItems, payload} rewrite the query-rewrite stage is assumed to have
// already produced (§1, §3, deliberately out of scope) -- into validated
// cosmos.Element values the GroupBy stage can feed straight into
// GroupingTable.AddPayload.
//
// Validation follows the same embed.FS + jsonschema.Compile shape as the
// teacher's pkg/schema/validate.go.
package rewritten

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

//go:embed schemas/*
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

var compiledSchema *jsonschema.Schema

func schemaOnce() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	s, err := jsonschema.Compile("embedFS://schemas/rewritten-projection.schema.json")
	if err != nil {
		return nil, err
	}
	compiledSchema = s
	return s, nil
}

// Projection mirrors pipeline.RewrittenProjection; it is decoded from raw
// JSON bytes by Parse, keeping internal/pipeline free of a JSON Schema
// dependency of its own.
type Projection struct {
	GroupByItems []cosmos.Element
	Payload      cosmos.Element
}

// ValidationError is returned by Parse for a malformed rewritten
// projection; it is the §7 BadRequest class, surfaced to pipeline as a
// plain error so pipeline can wrap it with its own BadRequestError type.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ToCosmosObject re-shapes a Projection back into the
// {"groupByItems": [{"item": v}, ...], "payload": ...} cosmos.Element form
// the GroupBy stage expects from any source, regardless of whether that
// source's elements originated from this package's JSON-backed Parse or
// from an in-memory test/demo source built directly out of cosmos values.
func (p Projection) ToCosmosObject() *cosmos.Object {
	items := make(cosmos.Array, len(p.GroupByItems))
	for i, v := range p.GroupByItems {
		itemObj := cosmos.NewObject()
		itemObj.Set("item", v)
		items[i] = itemObj
	}
	obj := cosmos.NewObject()
	obj.Set("groupByItems", items)
	obj.Set("payload", p.Payload)
	return obj
}

// Parse validates raw against the embedded JSON Schema and decodes it into a
// Projection. raw is expected to already be a {"groupByItems": [...],
// "payload": ...} document (§3).
func Parse(raw []byte) (Projection, error) {
	schema, err := schemaOnce()
	if err != nil {
		return Projection{}, fmt.Errorf("rewritten: compile schema: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Projection{}, &ValidationError{Reason: "rewritten projection is not valid JSON"}
	}
	if err := schema.Validate(generic); err != nil {
		return Projection{}, &ValidationError{Reason: fmt.Sprintf("rewritten projection failed validation: %s", err)}
	}

	var doc struct {
		GroupByItems []struct {
			Item json.RawMessage `json:"item"`
		} `json:"groupByItems"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Projection{}, &ValidationError{Reason: "rewritten projection did not decode into the expected shape"}
	}

	items := make([]cosmos.Element, len(doc.GroupByItems))
	for i, gi := range doc.GroupByItems {
		elem, err := decodeJSON(gi.Item)
		if err != nil {
			return Projection{}, &ValidationError{Reason: fmt.Sprintf("groupByItems[%d].item: %s", i, err)}
		}
		items[i] = elem
	}

	payload, err := decodeJSON(doc.Payload)
	if err != nil {
		return Projection{}, &ValidationError{Reason: fmt.Sprintf("payload: %s", err)}
	}

	return Projection{GroupByItems: items, Payload: payload}, nil
}

// ParseElement validates an already-decoded cosmos.Element against the same
// embedded schema Parse uses and re-shapes it into a Projection. A source
// that hands the GroupBy stage cosmos.Element values directly (rather than
// raw JSON bytes) still goes through schema validation this way: the
// element is re-serialized to JSON and fed through the same path as Parse.
func ParseElement(e cosmos.Element) (Projection, error) {
	raw, err := marshalElement(e)
	if err != nil {
		return Projection{}, &ValidationError{Reason: fmt.Sprintf("rewritten projection: %s", err)}
	}
	return Parse(raw)
}

// marshalElement re-serializes a cosmos.Element into plain JSON bytes,
// preserving the int64/float64 distinction decodeJSON relies on by always
// giving float64 values a decimal point or exponent (§3: "1 (integer) and
// 1.0 (double) are not equal").
func marshalElement(e cosmos.Element) (json.RawMessage, error) {
	switch v := e.(type) {
	case cosmos.Undefined, nil:
		return json.RawMessage("null"), nil
	case cosmos.Null:
		return json.RawMessage("null"), nil
	case cosmos.Bool:
		return json.Marshal(bool(v))
	case cosmos.Int64:
		return json.Marshal(int64(v))
	case cosmos.Float64:
		s := strconv.FormatFloat(float64(v), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return json.RawMessage(s), nil
	case cosmos.String:
		return json.Marshal(string(v))
	case cosmos.Array:
		parts := make([]json.RawMessage, len(v))
		for i, elem := range v {
			part, err := marshalElement(elem)
			if err != nil {
				return nil, err
			}
			parts[i] = part
		}
		return json.Marshal(parts)
	case *cosmos.Object:
		fields := make(map[string]json.RawMessage, len(v.Keys))
		for _, k := range v.Keys {
			val, _ := v.Get(k)
			part, err := marshalElement(val)
			if err != nil {
				return nil, err
			}
			fields[k] = part
		}
		return json.Marshal(fields)
	default:
		return nil, fmt.Errorf("cannot marshal element of type %T", e)
	}
}

// decodeJSON turns a json.RawMessage into the matching cosmos.Element,
// distinguishing integers from doubles the way encoding/json's
// json.Number does (§3: "1 (integer) and 1.0 (double) are not equal").
func decodeJSON(raw json.RawMessage) (cosmos.Element, error) {
	if len(raw) == 0 {
		return cosmos.Undefined{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return fromGeneric(v)
}

func fromGeneric(v interface{}) (cosmos.Element, error) {
	switch val := v.(type) {
	case nil:
		return cosmos.Null{}, nil
	case bool:
		return cosmos.Bool(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return cosmos.Int64(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", val.String())
		}
		return cosmos.Float64(f), nil
	case string:
		return cosmos.String(val), nil
	case []interface{}:
		arr := make(cosmos.Array, len(val))
		for i, elem := range val {
			decoded, err := fromGeneric(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = decoded
		}
		return arr, nil
	case map[string]interface{}:
		return fromGenericObject(val)
	default:
		return nil, fmt.Errorf("unsupported JSON value of type %T", v)
	}
}

// fromGenericObject decodes a JSON object. Go's map[string]any decoding
// loses source key order, but that is harmless here: fingerprinting sorts
// keys independently (§4.2) and alias lookups are by name, not position.
func fromGenericObject(m map[string]interface{}) (cosmos.Element, error) {
	obj := cosmos.NewObject()
	for k, v := range m {
		elem, err := fromGeneric(v)
		if err != nil {
			return nil, err
		}
		obj.Set(k, elem)
	}
	return obj, nil
}
