package repository

import (
	"strings"
	"time"

	"github.com/amirphl/Kitsune-CRM/models"
	"gorm.io/gorm"
)

// totalOrdersExpr counts a customer's orders without requiring a join.
const totalOrdersExpr = "(SELECT COUNT(*) FROM orders WHERE orders.customer_id = customers.id)"

// CompiledRules is a segment rule tree lowered to a SQL condition over the
// customers table. A malformed or unknown condition compiles to TRUE so a
// bad rule widens the audience instead of erroring.
type CompiledRules struct {
	expr string
	args []any
}

// Empty reports whether the rule tree carried no conditions at all, in which
// case the compiled predicate matches every customer.
func (c CompiledRules) Empty() bool {
	return c.expr == ""
}

// SQL returns the raw condition and its bind arguments
func (c CompiledRules) SQL() (string, []any) {
	return c.expr, c.args
}

// Apply attaches the condition to a customers query
func (c CompiledRules) Apply(db *gorm.DB) *gorm.DB {
	if c.Empty() {
		return db
	}
	return db.Where(c.expr, c.args...)
}

// CompileRules lowers a rule tree to a single SQL condition. The reference
// time anchors "days since last order" conditions.
func CompileRules(tree models.RuleTree, now time.Time) CompiledRules {
	if tree.IsEmpty() {
		return CompiledRules{}
	}

	exprs := make([]string, 0, len(tree.Conditions))
	args := make([]any, 0, len(tree.Conditions))

	for _, cond := range tree.Conditions {
		expr, condArgs := compileCondition(cond, now)
		exprs = append(exprs, expr)
		args = append(args, condArgs...)
	}

	joiner := " OR "
	if tree.LogicType == models.RuleLogicAll {
		joiner = " AND "
	}

	return CompiledRules{
		expr: strings.Join(exprs, joiner),
		args: args,
	}
}

func compileCondition(cond models.RuleCondition, now time.Time) (string, []any) {
	switch cond.Type {
	case models.RuleTypeMinimumSpent:
		return compileNumeric("customers.total_spend", cond)
	case models.RuleTypeVisitCount:
		return compileNumeric("customers.visit_count", cond)
	case models.RuleTypeTotalOrders:
		return compileNumeric(totalOrdersExpr, cond)
	case models.RuleTypeDaysSinceLast:
		return compileDaysSince(cond, now)
	default:
		return noopCondition()
	}
}

// noopCondition matches every customer; used for anything the compiler does
// not understand.
func noopCondition() (string, []any) {
	return "TRUE", nil
}

func compileNumeric(column string, cond models.RuleCondition) (string, []any) {
	switch cond.Operator {
	case models.RuleOperatorIs:
		v, ok := cond.Value.Number()
		if !ok {
			return noopCondition()
		}
		return column + " = ?", []any{v}
	case models.RuleOperatorGreaterThan:
		v, ok := cond.Value.Number()
		if !ok {
			return noopCondition()
		}
		return column + " > ?", []any{v}
	case models.RuleOperatorLessThan:
		v, ok := cond.Value.Number()
		if !ok {
			return noopCondition()
		}
		return column + " < ?", []any{v}
	case models.RuleOperatorBetween:
		low, high, ok := cond.Value.Range()
		if !ok {
			return noopCondition()
		}
		return "(" + column + " >= ? AND " + column + " <= ?)", []any{low, high}
	default:
		return noopCondition()
	}
}

// compileDaysSince translates "days since last order" into bounds on the
// last_purchase timestamp. More days elapsed means an older timestamp, so
// "greater than N days" selects purchases before the cutoff and "less than
// N days" selects purchases after it.
func compileDaysSince(cond models.RuleCondition, now time.Time) (string, []any) {
	const column = "customers.last_purchase"

	cutoff := func(days float64) time.Time {
		return now.Add(-time.Duration(days * 24 * float64(time.Hour)))
	}

	switch cond.Operator {
	case models.RuleOperatorIs:
		days, ok := cond.Value.Number()
		if !ok {
			return noopCondition()
		}
		return column + " = ?", []any{cutoff(days)}
	case models.RuleOperatorGreaterThan:
		days, ok := cond.Value.Number()
		if !ok {
			return noopCondition()
		}
		return column + " < ?", []any{cutoff(days)}
	case models.RuleOperatorLessThan:
		days, ok := cond.Value.Number()
		if !ok {
			return noopCondition()
		}
		return column + " > ?", []any{cutoff(days)}
	case models.RuleOperatorBetween:
		low, high, ok := cond.Value.Range()
		if !ok {
			return noopCondition()
		}
		// low..high days ago maps to the window [now-high, now-low]
		return "(" + column + " >= ? AND " + column + " <= ?)", []any{cutoff(high), cutoff(low)}
	default:
		return noopCondition()
	}
}
