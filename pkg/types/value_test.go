package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFloat(t *testing.T, f float64) Value {
	t.Helper()
	v, err := FloatValue(f)
	require.NoError(t, err)
	return v
}

func mustCharInterval(t *testing.T, lo, hi rune) Value {
	t.Helper()
	v, err := CharInterval(lo, hi)
	require.NoError(t, err)
	return v
}

func mustStringInterval(t *testing.T, lo, hi string) Value {
	t.Helper()
	v, err := StringInterval(lo, hi)
	require.NoError(t, err)
	return v
}

func TestFloatValueRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := FloatValue(f)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	}
}

func TestIntervalConstructionOrdersBounds(t *testing.T) {
	_, err := CharInterval('z', 'a')
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = StringInterval("m", "a")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	v, err := StringInterval("a", "a")
	require.NoError(t, err)
	lo, hi := v.Bounds()
	assert.Equal(t, "a", lo)
	assert.Equal(t, "a", hi)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int less", IntValue(1), IntValue(2), -1},
		{"int equal", IntValue(7), IntValue(7), 0},
		{"float greater", mustFloat(t, 2.5), mustFloat(t, 1.5), 1},
		{"char order", CharValue('a'), CharValue('b'), -1},
		{"string order", StringValue("lambo"), StringValue("ferrari"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Compare(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := IntValue(1).Compare(StringValue("1"))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = mustStringInterval(t, "a", "m").Compare(mustStringInterval(t, "a", "m"))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestContains(t *testing.T) {
	iv := mustStringInterval(t, "a", "m")

	in, err := iv.Contains(StringValue("ferrari"))
	require.NoError(t, err)
	assert.True(t, in)

	out, err := iv.Contains(StringValue("zeta"))
	require.NoError(t, err)
	assert.False(t, out)

	// bounds are inclusive
	lo, err := iv.Contains(StringValue("a"))
	require.NoError(t, err)
	assert.True(t, lo)
	hi, err := iv.Contains(StringValue("m"))
	require.NoError(t, err)
	assert.True(t, hi)

	_, err = iv.Contains(IntValue(1))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	ci := mustCharInterval(t, 'a', 'f')
	in, err = ci.Contains(CharValue('c'))
	require.NoError(t, err)
	assert.True(t, in)
	out, err = ci.Contains(CharValue('z'))
	require.NoError(t, err)
	assert.False(t, out)
}

func TestMatches(t *testing.T) {
	ok, err := IntValue(1).Matches(IntValue(1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IntValue(1).Matches(IntValue(2))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = mustCharInterval(t, 'a', 'm').Matches(CharValue('f'))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		to   DataType
		want Value
	}{
		{"string to char", StringValue("x"), TypeChar, CharValue('x')},
		{"string to int", StringValue("42"), TypeInt, IntValue(42)},
		{"string to float", StringValue("1.5"), TypeFloat, mustFloat(t, 1.5)},
		{"char to string", CharValue('q'), TypeString, StringValue("q")},
		{"char digit to int", CharValue('7'), TypeInt, IntValue(7)},
		{"int to float", IntValue(3), TypeFloat, mustFloat(t, 3)},
		{"identity", IntValue(5), TypeInt, IntValue(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.v.Coerce(tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	failures := []struct {
		name string
		v    Value
		to   DataType
	}{
		{"long string to char", StringValue("xy"), TypeChar},
		{"word to int", StringValue("ferrari"), TypeInt},
		{"float to int", mustFloat(t, 1.5), TypeInt},
		{"int to string", IntValue(1), TypeString},
		{"interval never coerces", mustStringInterval(t, "a", "m"), TypeString},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.Coerce(tt.to)
			assert.ErrorIs(t, err, ErrTypeMismatch)
		})
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	values := []Value{
		IntValue(-3),
		mustFloat(t, 123.456),
		CharValue('ф'),
		StringValue("ferrari"),
		mustCharInterval(t, 'a', 'm'),
		mustStringInterval(t, "alpha", "omega"),
	}
	for _, v := range values {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var back Value
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, v, back)
	}
}

func TestValueJSONWireShape(t *testing.T) {
	data, err := json.Marshal(IntValue(42))
	require.NoError(t, err)
	assert.JSONEq(t, `{"int": 42}`, string(data))

	data, err = json.Marshal(mustStringInterval(t, "a", "m"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"string_interval": ["a", "m"]}`, string(data))

	var v Value
	err = json.Unmarshal([]byte(`{"int": 1, "float": 2.0}`), &v)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	err = json.Unmarshal([]byte(`{"char": "too long"}`), &v)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	err = json.Unmarshal([]byte(`{"string_interval": ["m", "a"]}`), &v)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestParseLiteral(t *testing.T) {
	v, err := ParseLiteral(TypeInt, "42")
	require.NoError(t, err)
	assert.Equal(t, IntValue(42), v)

	v, err = ParseLiteral(TypeFloat, "123.456")
	require.NoError(t, err)
	assert.Equal(t, mustFloat(t, 123.456), v)

	v, err = ParseLiteral(TypeChar, "x")
	require.NoError(t, err)
	assert.Equal(t, CharValue('x'), v)

	v, err = ParseLiteral(TypeString, "hello world")
	require.NoError(t, err)
	assert.Equal(t, StringValue("hello world"), v)

	_, err = ParseLiteral(TypeInt, "ferrari")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = ParseLiteral(TypeChar, "ab")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "42", IntValue(42).String())
	assert.Equal(t, "123.456", mustFloat(t, 123.456).String())
	assert.Equal(t, "x", CharValue('x').String())
	assert.Equal(t, "[a, m]", mustStringInterval(t, "a", "m").String())
}
