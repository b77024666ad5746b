// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClusterCockpit/cc-queryexec/pkg/cosmos"
)

func TestElementCodecRoundTrip(t *testing.T) {
	nested := obj("a", cosmos.Int64(1), "b", cosmos.Array{cosmos.String("x"), cosmos.Null{}, cosmos.Bool(true)})

	cases := []cosmos.Element{
		cosmos.Undefined{},
		cosmos.Null{},
		cosmos.Bool(true),
		cosmos.Int64(42),
		cosmos.Float64(3.5),
		cosmos.String("hello"),
		cosmos.Array{cosmos.Int64(1), cosmos.Int64(2)},
		nested,
	}

	for _, e := range cases {
		encoded := encodeElement(e)
		decoded, err := decodeElement(encoded)
		require.NoError(t, err)
		assert.Equal(t, e, decoded)
	}
}

func TestDecodeElementEmptyStringIsUndefined(t *testing.T) {
	decoded, err := decodeElement("")
	require.NoError(t, err)
	assert.Equal(t, cosmos.Undefined{}, decoded)
}
