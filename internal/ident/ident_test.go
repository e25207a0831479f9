// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeIdent(t *testing.T) {
	cases := map[string]string{
		"users":            `"users"`,
		"drop\"; --":       `"drop""; --"`,
		"":                 `""`,
		"weird space":      `"weird space"`,
	}
	for in, want := range cases {
		assert.Equal(t, want, EscapeIdent(in))
	}
}

func TestQualifiedIdentifierString(t *testing.T) {
	assert.Equal(t, `"users"`, QualifiedIdentifier{Name: "users"}.String())
	assert.Equal(t, `"public"."users"`, QualifiedIdentifier{Schema: "public", Name: "users"}.String())
}

func TestSqlFragmentPushParam(t *testing.T) {
	var f SqlFragment
	f.Push(`SELECT * FROM "users" WHERE "id" = `).PushParam(Int(5))

	sql, params := f.Build()
	require.Equal(t, `SELECT * FROM "users" WHERE "id" = $1`, sql)
	require.Len(t, params, 1)
	assert.Equal(t, int64(5), params[0].Value)
}

func TestSqlFragmentAppendRenumbers(t *testing.T) {
	var left SqlFragment
	left.Push(`"age" >= `).PushParam(Int(18))

	var right SqlFragment
	right.Push(`"name" = `).PushParam(Text("Alice"))

	left.Push(" AND ").Append(right)

	sql, params := left.Build()
	assert.Equal(t, `"age" >= $1 AND "name" = $2`, sql)
	require.Len(t, params, 2)
	assert.Equal(t, int64(18), params[0].Value)
	assert.Equal(t, "Alice", params[1].Value)
}

// TestFragmentAppendAssociativity checks property #3 from the testable
// properties list: (a ++ b) ++ c == a ++ (b ++ c).
func TestFragmentAppendAssociativity(t *testing.T) {
	newA := func() SqlFragment {
		var f SqlFragment
		f.Push("a=").PushParam(Int(1))
		return f
	}
	newB := func() SqlFragment {
		var f SqlFragment
		f.Push(" b=").PushParam(Int(2))
		return f
	}
	newC := func() SqlFragment {
		var f SqlFragment
		f.Push(" c=").PushParam(Int(3))
		return f
	}

	left := newA()
	left.Append(newB())
	left.Append(newC())

	bc := newB()
	bc.Append(newC())
	right := newA()
	right.Append(bc)

	leftSQL, leftParams := left.Build()
	rightSQL, rightParams := right.Build()

	assert.Equal(t, leftSQL, rightSQL)
	assert.Equal(t, leftParams, rightParams)
}

func TestJoinSkipsEmptyFragments(t *testing.T) {
	var a, c SqlFragment
	a.Push(`"x" = `).PushParam(Int(1))
	c.Push(`"y" = `).PushParam(Int(2))

	joined := Join(" AND ", a, SqlFragment{}, c)
	sql, params := joined.Build()
	assert.Equal(t, `"x" = $1 AND "y" = $2`, sql)
	assert.Len(t, params, 2)
}

func TestPlaceholdersAreContiguous(t *testing.T) {
	var f SqlFragment
	f.PushParam(Int(1))
	f.Push(", ")
	f.PushParam(Int(2))
	f.Push(", ")
	f.PushParam(Int(3))

	sql, params := f.Build()
	assert.Equal(t, "$1, $2, $3", sql)
	assert.Len(t, params, 3)
}
