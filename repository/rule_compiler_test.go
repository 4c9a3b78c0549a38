package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleTreeFromJSON(t *testing.T, raw string) models.RuleTree {
	t.Helper()
	var tree models.RuleTree
	require.NoError(t, json.Unmarshal([]byte(raw), &tree))
	return tree
}

func TestCompileRulesEmptyTreeMatchesAll(t *testing.T) {
	compiled := CompileRules(models.RuleTree{}, time.Now().UTC())

	assert.True(t, compiled.Empty())

	expr, args := compiled.SQL()
	assert.Equal(t, "", expr)
	assert.Empty(t, args)
}

func TestCompileRulesOperatorMapping(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name     string
		raw      string
		wantExpr string
		wantArgs []any
	}{
		{
			name:     "minimum spent is",
			raw:      `{"conditions":[{"type":"minimum spent","operator":"is","value":"5000"}],"logicType":"All"}`,
			wantExpr: "customers.total_spend = ?",
			wantArgs: []any{float64(5000)},
		},
		{
			name:     "minimum spent greater than",
			raw:      `{"conditions":[{"type":"minimum spent","operator":"greater than","value":"5000"}],"logicType":"All"}`,
			wantExpr: "customers.total_spend > ?",
			wantArgs: []any{float64(5000)},
		},
		{
			name:     "visit count less than",
			raw:      `{"conditions":[{"type":"visit count","operator":"less than","value":"3"}],"logicType":"All"}`,
			wantExpr: "customers.visit_count < ?",
			wantArgs: []any{float64(3)},
		},
		{
			name:     "visit count between",
			raw:      `{"conditions":[{"type":"visit count","operator":"between","value":["2","8"]}],"logicType":"All"}`,
			wantExpr: "(customers.visit_count >= ? AND customers.visit_count <= ?)",
			wantArgs: []any{float64(2), float64(8)},
		},
		{
			name:     "total orders uses subquery",
			raw:      `{"conditions":[{"type":"total orders","operator":"greater than","value":"10"}],"logicType":"All"}`,
			wantExpr: totalOrdersExpr + " > ?",
			wantArgs: []any{float64(10)},
		},
		{
			name:     "numeric json values accepted",
			raw:      `{"conditions":[{"type":"minimum spent","operator":"is","value":5000}],"logicType":"All"}`,
			wantExpr: "customers.total_spend = ?",
			wantArgs: []any{float64(5000)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			compiled := CompileRules(ruleTreeFromJSON(t, tc.raw), now)
			expr, args := compiled.SQL()
			assert.Equal(t, tc.wantExpr, expr)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}

func TestCompileRulesDaysSinceLastOrder(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tree := ruleTreeFromJSON(t, `{"conditions":[{"type":"days since last order","operator":"greater than","value":"30"}],"logicType":"All"}`)

	// More than 30 days elapsed means the last purchase is older than the cutoff.
	expr, args := CompileRules(tree, now).SQL()
	assert.Equal(t, "customers.last_purchase < ?", expr)
	require.Len(t, args, 1)
	assert.Equal(t, now.Add(-30*24*time.Hour), args[0])

	tree = ruleTreeFromJSON(t, `{"conditions":[{"type":"days since last order","operator":"less than","value":"7"}],"logicType":"All"}`)
	expr, args = CompileRules(tree, now).SQL()
	assert.Equal(t, "customers.last_purchase > ?", expr)
	require.Len(t, args, 1)
	assert.Equal(t, now.Add(-7*24*time.Hour), args[0])

	tree = ruleTreeFromJSON(t, `{"conditions":[{"type":"days since last order","operator":"between","value":["10","20"]}],"logicType":"All"}`)
	expr, args = CompileRules(tree, now).SQL()
	assert.Equal(t, "(customers.last_purchase >= ? AND customers.last_purchase <= ?)", expr)
	require.Len(t, args, 2)
	assert.Equal(t, now.Add(-20*24*time.Hour), args[0])
	assert.Equal(t, now.Add(-10*24*time.Hour), args[1])
}

func TestCompileRulesLogicTypes(t *testing.T) {
	now := time.Now().UTC()

	all := CompileRules(ruleTreeFromJSON(t, `{"conditions":[
		{"type":"minimum spent","operator":"greater than","value":"5000"},
		{"type":"visit count","operator":"less than","value":"3"}
	],"logicType":"All"}`), now)
	expr, args := all.SQL()
	assert.Equal(t, "customers.total_spend > ? AND customers.visit_count < ?", expr)
	assert.Equal(t, []any{float64(5000), float64(3)}, args)

	any := CompileRules(ruleTreeFromJSON(t, `{"conditions":[
		{"type":"minimum spent","operator":"greater than","value":"5000"},
		{"type":"visit count","operator":"less than","value":"3"}
	],"logicType":"Any"}`), now)
	expr, _ = any.SQL()
	assert.Equal(t, "customers.total_spend > ? OR customers.visit_count < ?", expr)

	// Anything that is not "All" combines with OR.
	other := CompileRules(ruleTreeFromJSON(t, `{"conditions":[
		{"type":"minimum spent","operator":"greater than","value":"5000"},
		{"type":"visit count","operator":"less than","value":"3"}
	],"logicType":"Whatever"}`), now)
	expr, _ = other.SQL()
	assert.Equal(t, "customers.total_spend > ? OR customers.visit_count < ?", expr)
}

func TestCompileRulesMalformedConditionsAreNoOps(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name string
		raw  string
	}{
		{
			name: "unknown condition type",
			raw:  `{"conditions":[{"type":"favorite color","operator":"is","value":"blue"}],"logicType":"All"}`,
		},
		{
			name: "unknown operator",
			raw:  `{"conditions":[{"type":"minimum spent","operator":"resembles","value":"5000"}],"logicType":"All"}`,
		},
		{
			name: "between with a single value",
			raw:  `{"conditions":[{"type":"minimum spent","operator":"between","value":"5000"}],"logicType":"All"}`,
		},
		{
			name: "between with three elements",
			raw:  `{"conditions":[{"type":"minimum spent","operator":"between","value":["1","2","3"]}],"logicType":"All"}`,
		},
		{
			name: "between with non-numeric bounds",
			raw:  `{"conditions":[{"type":"minimum spent","operator":"between","value":["low","high"]}],"logicType":"All"}`,
		},
		{
			name: "unparsable scalar",
			raw:  `{"conditions":[{"type":"minimum spent","operator":"is","value":"lots"}],"logicType":"All"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			compiled := CompileRules(ruleTreeFromJSON(t, tc.raw), now)
			expr, args := compiled.SQL()
			assert.Equal(t, "TRUE", expr)
			assert.Empty(t, args)
		})
	}
}

func TestCompileRulesNoOpInsideCombination(t *testing.T) {
	now := time.Now().UTC()

	// The malformed condition collapses to TRUE but the valid one still binds.
	tree := ruleTreeFromJSON(t, `{"conditions":[
		{"type":"favorite color","operator":"is","value":"blue"},
		{"type":"minimum spent","operator":"greater than","value":"1000"}
	],"logicType":"All"}`)

	expr, args := CompileRules(tree, now).SQL()
	assert.Equal(t, "TRUE AND customers.total_spend > ?", expr)
	assert.Equal(t, []any{float64(1000)}, args)
}

func TestRuleTreeJSONRoundTrip(t *testing.T) {
	raw := `{"conditions":[{"id":"c1","type":"minimum spent","operator":"between","value":["100","200"]}],"logicType":"Any"}`

	var tree models.RuleTree
	require.NoError(t, json.Unmarshal([]byte(raw), &tree))

	out, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}
