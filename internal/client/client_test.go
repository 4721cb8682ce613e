package client

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/pkg/types"
)

func TestSplitWhere(t *testing.T) {
	before, conditions := splitWhere([]string{"price=1", "where", "id=2"})
	assert.Equal(t, []string{"price=1"}, before)
	assert.Equal(t, []string{"id=2"}, conditions)

	before, conditions = splitWhere([]string{"id=1"})
	assert.Equal(t, []string{"id=1"}, before)
	assert.Nil(t, conditions)

	before, conditions = splitWhere([]string{"WHERE", "id=1"})
	assert.Empty(t, before)
	assert.Equal(t, []string{"id=1"}, conditions)
}

func TestPairMap(t *testing.T) {
	m := pairMap([]string{"id=1", "name=[a,m]"})
	assert.Equal(t, map[string]string{"id": "1", "name": "[a,m]"}, m)
}

func TestParseColumns(t *testing.T) {
	columns, err := parseColumns([]string{"id:int", "name:string", "price:float"})
	require.NoError(t, err)
	assert.Equal(t, []types.Column{
		{Name: "id", Type: types.TypeInt},
		{Name: "name", Type: types.TypeString},
		{Name: "price", Type: types.TypeFloat},
	}, columns)

	_, err = parseColumns([]string{"id"})
	assert.Error(t, err)

	_, err = parseColumns([]string{"id:integer"})
	assert.ErrorIs(t, err, types.ErrInvalidSchema)
}

func TestRenderCSV(t *testing.T) {
	price, err := types.FloatValue(123.456)
	require.NoError(t, err)
	rows := []types.Row{{
		"id":   types.IntValue(1),
		"name": types.StringValue("ferrari, the red one"),
	}, {
		"id":   types.IntValue(2),
		"name": price,
	}}

	var buf bytes.Buffer
	require.NoError(t, renderCSV(&buf, []string{"id", "name"}, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name", lines[0])
	assert.Contains(t, lines, `1,"ferrari, the red one"`)
}

func TestRenderTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTable(&buf, []string{"id"}, nil))
	assert.Contains(t, buf.String(), "(0 rows)")
}
