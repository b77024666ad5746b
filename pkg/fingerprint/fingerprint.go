// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fingerprint computes the 128-bit content-addressed hash (§4.2)
// DistinctMap and GroupingTable use as their sole equality relation.
//
// The teacher's own go.sum already pulls in github.com/cespare/xxhash/v2
// transitively (via the Prometheus client); none of the example repos in the
// retrieval pack import a dedicated 128-bit hash (e.g. a Murmur3-128
// implementation), so this package reaches for the same family of hash the
// corpus already trusts and derives 128 bits of digest from two
// independently-seeded 64-bit xxhash passes over one canonical byte stream.
// This is documented in DESIGN.md as an Open Question resolution.
package fingerprint

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

// UInt128 is a 128-bit fingerprint, split into two 64-bit halves.
type UInt128 struct {
	Hi, Lo uint64
}

// Equal reports whether two fingerprints are bit-identical.
func (u UInt128) Equal(o UInt128) bool {
	return u.Hi == o.Hi && u.Lo == o.Lo
}

// Zero is the fingerprint of no value; never produced by Of for a real
// Element, safe to use as a "nothing seen yet" sentinel.
var Zero = UInt128{}

// second hash seed, arbitrary but fixed so fingerprints survive restarts.
const secondSeed uint64 = 0x9E3779B97F4A7C15

// type tags, one byte each, prefixed onto every canonical encoding so that
// Int64(1), Float64(1) and String("1") never collide (§4.2).
const (
	tagUndefined byte = iota
	tagNull
	tagBoolFalse
	tagBoolTrue
	tagInt64
	tagFloat64
	tagString
	tagArray
	tagObject
)

// Of computes the canonical 128-bit fingerprint of e.
func Of(e cosmos.Element) UInt128 {
	buf := make([]byte, 0, 64)
	buf = appendCanonical(buf, e)
	return hash128(buf)
}

func hash128(b []byte) UInt128 {
	d1 := xxhash.New()
	d1.Write(b) //nolint:errcheck // xxhash.Digest.Write never errors
	hi := d1.Sum64()

	d2 := xxhash.NewWithSeed(secondSeed)
	d2.Write(b) //nolint:errcheck
	lo := d2.Sum64()

	return UInt128{Hi: hi, Lo: lo}
}

func appendCanonical(buf []byte, e cosmos.Element) []byte {
	switch v := e.(type) {
	case nil:
		return append(buf, tagUndefined)
	case cosmos.Undefined:
		return append(buf, tagUndefined)
	case cosmos.Null:
		return append(buf, tagNull)
	case cosmos.Bool:
		if v {
			return append(buf, tagBoolTrue)
		}
		return append(buf, tagBoolFalse)
	case cosmos.Int64:
		buf = append(buf, tagInt64)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		return append(buf, tmp[:]...)
	case cosmos.Float64:
		buf = append(buf, tagFloat64)
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(float64(v)))
		return append(buf, tmp[:]...)
	case cosmos.String:
		buf = append(buf, tagString)
		buf = appendLength(buf, len(v))
		return append(buf, v...)
	case cosmos.Array:
		buf = append(buf, tagArray)
		buf = appendLength(buf, len(v))
		for _, elem := range v {
			buf = appendCanonical(buf, elem)
		}
		return buf
	case *cosmos.Object:
		buf = append(buf, tagObject)
		keys := v.SortedKeys()
		buf = appendLength(buf, len(keys))
		for _, k := range keys {
			buf = appendCanonical(buf, cosmos.String(k))
			val, _ := v.Get(k)
			buf = appendCanonical(buf, val)
		}
		return buf
	default:
		return append(buf, tagUndefined)
	}
}

func appendLength(buf []byte, n int) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(n))
	return append(buf, tmp[:]...)
}

// OfGroupByItems fingerprints an ordered tuple of grouping-key values the way
// GroupingTable does: as a single Array element, so that order is
// significant and the tuple hashes identically regardless of where it came
// from (§4.5: "k = fingerprint(rewritten.groupByItems)").
func OfGroupByItems(items []cosmos.Element) UInt128 {
	return Of(cosmos.Array(items))
}
