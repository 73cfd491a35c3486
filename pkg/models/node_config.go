package models

import (
	"fmt"
	"time"
)

// TriggerConfig gates a flow on a domain event type and optional predicates
// evaluated against the event data.
type TriggerConfig struct {
	EventType  string            `json:"event_type" validate:"required"`
	Conditions TriggerConditions `json:"conditions"`
}

type TriggerConditions struct {
	IsFirstOrder    *bool    `json:"is_first_order,omitempty"`
	MinInactiveDays *int     `json:"min_inactive_days,omitempty" validate:"omitempty,gte=1"`
	MinOrderValue   *float64 `json:"min_order_value,omitempty"   validate:"omitempty,gte=0"`
}

// MessageConfig references a stored template or carries inline content.
type MessageConfig struct {
	TemplateID string `json:"template_id,omitempty" validate:"required_without=Content"`
	Subject    string `json:"subject,omitempty"`
	Content    string `json:"content,omitempty"     validate:"required_without=TemplateID"`
}

// DelayUnit is the unit a delay value is expressed in.
type DelayUnit string

const (
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
)

// MaxDelay is the longest wait a delay node may configure.
const MaxDelay = 3650 * 24 * time.Hour

type DelayConfig struct {
	Value int       `json:"value" validate:"gte=0"`
	Unit  DelayUnit `json:"unit"  validate:"required,oneof=minutes hours days"`
}

// Duration converts the configured value and unit into a time.Duration.
func (d DelayConfig) Duration() (time.Duration, error) {
	var unit time.Duration

	switch d.Unit {
	case DelayUnitMinutes:
		unit = time.Minute
	case DelayUnitHours:
		unit = time.Hour
	case DelayUnitDays:
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("unsupported delay unit %q", d.Unit)
	}

	if d.Value < 0 {
		return 0, fmt.Errorf("negative delay value %d", d.Value)
	}

	if int64(d.Value) > int64(MaxDelay/unit) {
		return 0, fmt.Errorf("delay of %d %s exceeds the maximum of %s", d.Value, d.Unit, MaxDelay)
	}

	return time.Duration(d.Value) * unit, nil
}

// ConditionPredicate names the fact a condition node compares.
type ConditionPredicate string

const (
	PredicateOrderValue            ConditionPredicate = "order_value"
	PredicateOrderItemCount        ConditionPredicate = "order_item_count"
	PredicateCustomerOrderCount    ConditionPredicate = "customer_order_count"
	PredicateDaysSinceRegistration ConditionPredicate = "days_since_registration"
	PredicateHasDestination        ConditionPredicate = "has_destination"
)

// ConditionOperator compares the predicate's actual value with Value.
type ConditionOperator string

const (
	OperatorGTE ConditionOperator = "gte"
	OperatorGT  ConditionOperator = "gt"
	OperatorLTE ConditionOperator = "lte"
	OperatorLT  ConditionOperator = "lt"
	OperatorEQ  ConditionOperator = "eq"
	OperatorNE  ConditionOperator = "ne"
)

type ConditionConfig struct {
	Predicate ConditionPredicate `json:"predicate"          validate:"required,oneof=order_value order_item_count customer_order_count days_since_registration has_destination"`
	Operator  ConditionOperator  `json:"operator,omitempty" validate:"omitempty,oneof=gte gt lte lt eq ne"`
	Value     float64            `json:"value"`
}

// EffectiveOperator defaults an empty operator to "greater or equal".
func (c ConditionConfig) EffectiveOperator() ConditionOperator {
	if c.Operator == "" {
		return OperatorGTE
	}

	return c.Operator
}

// ActionKind is the side effect an action node performs.
type ActionKind string

const (
	ActionKindIssueDiscount ActionKind = "issue_discount"
	ActionKindTagSubject    ActionKind = "tag_subject"
	ActionKindEndFlow       ActionKind = "end_flow"
)

type ActionConfig struct {
	Kind              ActionKind `json:"kind"                          validate:"required,oneof=issue_discount tag_subject end_flow"`
	Tag               string     `json:"tag,omitempty"                 validate:"required_if=Kind tag_subject"`
	DiscountPercent   float64    `json:"discount_percent,omitempty"    validate:"required_if=Kind issue_discount,gte=0,lte=100"`
	DiscountValidDays int        `json:"discount_valid_days,omitempty" validate:"omitempty,gte=1"`
}

// DefaultDiscountValidDays applies when an issue_discount action omits its validity.
const DefaultDiscountValidDays = 7

// DiscountValidity returns how long an issued discount code stays redeemable.
func (a ActionConfig) DiscountValidity() time.Duration {
	days := a.DiscountValidDays
	if days <= 0 {
		days = DefaultDiscountValidDays
	}

	return time.Duration(days) * 24 * time.Hour
}

// Compare applies the effective operator to actual and the configured value.
func (c ConditionConfig) Compare(actual float64) bool {
	switch c.EffectiveOperator() {
	case OperatorGT:
		return actual > c.Value
	case OperatorLTE:
		return actual <= c.Value
	case OperatorLT:
		return actual < c.Value
	case OperatorEQ:
		return actual == c.Value
	case OperatorNE:
		return actual != c.Value
	default:
		return actual >= c.Value
	}
}
