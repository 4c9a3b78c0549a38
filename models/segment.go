package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Rule condition types understood by the rule compiler
const (
	RuleTypeMinimumSpent  = "minimum spent"
	RuleTypeTotalOrders   = "total orders"
	RuleTypeDaysSinceLast = "days since last order"
	RuleTypeVisitCount    = "visit count"
)

// Rule operators
const (
	RuleOperatorIs          = "is"
	RuleOperatorGreaterThan = "greater than"
	RuleOperatorLessThan    = "less than"
	RuleOperatorBetween     = "between"
)

// Rule logic types
const (
	RuleLogicAll = "All"
	RuleLogicAny = "Any"
)

// RuleValue holds a condition value as it arrived on the wire: either a
// single scalar ("5000") or a two-element range (["10", "20"]). The raw
// JSON is preserved so unknown shapes round-trip untouched.
type RuleValue struct {
	raw json.RawMessage
}

// SingleRuleValue builds a scalar rule value
func SingleRuleValue(v string) RuleValue {
	b, _ := json.Marshal(v)
	return RuleValue{raw: b}
}

// RangeRuleValue builds a two-element range rule value
func RangeRuleValue(low, high string) RuleValue {
	b, _ := json.Marshal([]string{low, high})
	return RuleValue{raw: b}
}

// MarshalJSON implements json.Marshaler
func (v RuleValue) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (v *RuleValue) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)
	return nil
}

// Number interprets the value as a single number. JSON strings and JSON
// numbers are both accepted.
func (v RuleValue) Number() (float64, bool) {
	if len(v.raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(v.raw, &s); err == nil {
		return parseRuleNumber(s)
	}
	var f float64
	if err := json.Unmarshal(v.raw, &f); err == nil {
		return f, true
	}
	return 0, false
}

// Range interprets the value as a two-element numeric range.
func (v RuleValue) Range() (low, high float64, ok bool) {
	if len(v.raw) == 0 {
		return 0, 0, false
	}
	var elems []RuleValue
	if err := json.Unmarshal(v.raw, &elems); err != nil {
		return 0, 0, false
	}
	if len(elems) != 2 {
		return 0, 0, false
	}
	low, okLow := elems[0].Number()
	high, okHigh := elems[1].Number()
	if !okLow || !okHigh {
		return 0, 0, false
	}
	return low, high, true
}

func parseRuleNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// RuleID is a condition identifier. Rule payloads arrive from both the
// dashboard and model completions, which disagree on whether ids are strings
// or numbers, so both decode into the same string-backed type.
type RuleID string

// UnmarshalJSON implements json.Unmarshaler
func (id *RuleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RuleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = RuleID(n.String())
	return nil
}

// RuleCondition is a single audience condition
type RuleCondition struct {
	ID       RuleID    `json:"id,omitempty"`
	Type     string    `json:"type"`
	Operator string    `json:"operator"`
	Value    RuleValue `json:"value"`
}

// RuleTree is the stored rule definition of a segment
type RuleTree struct {
	Conditions []RuleCondition `json:"conditions"`
	LogicType  string          `json:"logicType"`
}

// IsEmpty reports whether the tree carries no conditions
func (t RuleTree) IsEmpty() bool {
	return len(t.Conditions) == 0
}

// Value implements the driver.Valuer interface for RuleTree
func (t RuleTree) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for RuleTree
func (t *RuleTree) Scan(value any) error {
	if value == nil {
		*t = RuleTree{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RuleTree", value)
	}

	return json.Unmarshal(bytes, t)
}

// Segment represents a saved audience definition
type Segment struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_segments_uuid" json:"uuid"`

	Name        string   `gorm:"size:255;not null" json:"name"`
	Description *string  `gorm:"type:text" json:"description,omitempty"`
	Rules       RuleTree `gorm:"type:jsonb;not null" json:"rules"`

	// Cached at create/update time; refreshed on demand
	AudienceSize int `gorm:"not null;default:0" json:"audience_size"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_segments_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Campaigns []Campaign `gorm:"foreignKey:SegmentID" json:"-"`
}

func (Segment) TableName() string {
	return "segments"
}

// SegmentFilter represents filter criteria for segment queries
type SegmentFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Name          *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
