package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToText(t *testing.T) {
	t.Run("scalars", func(t *testing.T) {
		assert.Equal(t, "true", ToText(NewBool(true)).Text())
		assert.Equal(t, "false", ToText(NewBool(false)).Text())
		assert.Equal(t, "42", ToText(NewInt(42)).Text())
		assert.Equal(t, "3.5", ToText(NewFloat(3.5)).Text())
		assert.Equal(t, "2024-01-05", ToText(NewDate(CivilDate{2024, 1, 5})).Text())
	})

	t.Run("null propagates", func(t *testing.T) {
		assert.True(t, ToText(Nil).IsNull())
	})

	t.Run("list joins elements", func(t *testing.T) {
		l := NewList([]Value{NewInt(1), NewText("a"), Nil})
		assert.Equal(t, "[1, a, null]", ToText(l).Text())
	})

	t.Run("float shortest round trip", func(t *testing.T) {
		assert.Equal(t, "1", ToText(NewFloat(1)).Text())
		assert.Equal(t, "0.1", ToText(NewFloat(0.1)).Text())
	})
}

func TestToIntegerToFloat(t *testing.T) {
	t.Run("explicit text coercion only happens here", func(t *testing.T) {
		assert.Equal(t, int64(42), ToInteger(NewText("42")).Int())
		assert.Equal(t, 42.5, ToFloat(NewText("42.5")).Float())
	})

	t.Run("unparsable text yields null", func(t *testing.T) {
		assert.True(t, ToInteger(NewText("not a number")).IsNull())
	})

	t.Run("bool coerces", func(t *testing.T) {
		assert.Equal(t, int64(1), ToInteger(NewBool(true)).Int())
		assert.Equal(t, int64(0), ToInteger(NewBool(false)).Int())
	})
}

func TestEqual(t *testing.T) {
	t.Run("null never equals null", func(t *testing.T) {
		assert.False(t, Equal(Nil, Nil))
	})

	t.Run("numeric equality spans int and float", func(t *testing.T) {
		assert.True(t, Equal(NewInt(3), NewFloat(3.0)))
		assert.False(t, Equal(NewInt(3), NewFloat(3.1)))
	})

	t.Run("nan is never equal to itself", func(t *testing.T) {
		nan := NewFloat(math.NaN())
		assert.False(t, Equal(nan, nan))
	})

	t.Run("cross-tag mismatch", func(t *testing.T) {
		assert.False(t, Equal(NewText("3"), NewInt(3)))
	})

	t.Run("lists compare element-wise", func(t *testing.T) {
		a := NewList([]Value{NewInt(1), NewInt(2)})
		b := NewList([]Value{NewInt(1), NewInt(2)})
		c := NewList([]Value{NewInt(1), NewInt(3)})
		assert.True(t, Equal(a, b))
		assert.False(t, Equal(a, c))
	})
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(NewInt(1), NewFloat(2.0)))
	assert.Equal(t, 1, Compare(NewFloat(5.0), NewInt(2)))
	assert.Equal(t, 0, Compare(NewText("abc"), NewText("abc")))
	assert.Equal(t, -1, Compare(NewText("abc"), NewText("abd")))
	assert.Equal(t, -1, Compare(NewDate(CivilDate{2020, 1, 1}), NewDate(CivilDate{2021, 1, 1})))
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(NewBool(true)))
	assert.False(t, Truthy(NewBool(false)))
	assert.False(t, Truthy(Nil))
	assert.False(t, Truthy(NewInt(1)))
}

func TestHash(t *testing.T) {
	t.Run("integral float hashes like the equal int", func(t *testing.T) {
		assert.Equal(t, NewInt(7).Hash(), NewFloat(7.0).Hash())
	})

	t.Run("distinct values usually hash distinctly", func(t *testing.T) {
		assert.NotEqual(t, NewText("a").Hash(), NewText("b").Hash())
	})
}

func TestSet(t *testing.T) {
	t.Run("dedups by structural equality", func(t *testing.T) {
		s := NewSet()
		assert.True(t, s.Add(NewInt(1)))
		assert.True(t, s.Add(NewInt(2)))
		assert.False(t, s.Add(NewFloat(1.0))) // equal to NewInt(1)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("nan never collapses into a prior nan", func(t *testing.T) {
		s := NewSet()
		assert.True(t, s.Add(NewFloat(math.NaN())))
		assert.True(t, s.Add(NewFloat(math.NaN())))
		assert.Equal(t, 2, s.Len())
	})

	t.Run("contains", func(t *testing.T) {
		s := NewSet()
		s.Add(NewText("x"))
		assert.True(t, s.Contains(NewText("x")))
		assert.False(t, s.Contains(NewText("y")))
	})
}
