package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operator is one of the five fixed gate comparison operators.
type Operator string

const (
	OpEQ          Operator = "EQ"
	OpGTE         Operator = "GTE"
	OpIncludesAny Operator = "INCLUDES_ANY"
	OpIncludesAll Operator = "INCLUDES_ALL"
	OpIn          Operator = "IN"
)

// RuleValue is the expected value of a gate rule, one variant per operator.
// Implementations: EqValue, GteValue, IncludesAnyValue, IncludesAllValue, InValue.
type RuleValue interface {
	Operator() Operator
	// Expected returns the value shown to candidates in failure details.
	Expected() any
	isRuleValue()
}

// EqValue holds a scalar: bool, float64 or string.
type EqValue struct{ Want any }

// GteValue holds the numeric lower bound.
type GteValue struct{ Min float64 }

// IncludesAnyValue holds a canonical string set.
type IncludesAnyValue struct{ Set []string }

// IncludesAllValue holds a canonical string set.
type IncludesAllValue struct{ Set []string }

// InValue holds a canonical string set the scalar answer must belong to.
type InValue struct{ Set []string }

func (EqValue) Operator() Operator          { return OpEQ }
func (GteValue) Operator() Operator         { return OpGTE }
func (IncludesAnyValue) Operator() Operator { return OpIncludesAny }
func (IncludesAllValue) Operator() Operator { return OpIncludesAll }
func (InValue) Operator() Operator          { return OpIn }

func (v EqValue) Expected() any          { return v.Want }
func (v GteValue) Expected() any         { return v.Min }
func (v IncludesAnyValue) Expected() any { return v.Set }
func (v IncludesAllValue) Expected() any { return v.Set }
func (v InValue) Expected() any          { return v.Set }

func (EqValue) isRuleValue()          {}
func (GteValue) isRuleValue()         {}
func (IncludesAnyValue) isRuleValue() {}
func (IncludesAllValue) isRuleValue() {}
func (InValue) isRuleValue()          {}

// ParseOperator validates an operator name.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToUpper(strings.TrimSpace(s)))
	switch op {
	case OpEQ, OpGTE, OpIncludesAny, OpIncludesAll, OpIn:
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidArgument, s)
}

// DecodeRuleValue decodes a stored JSON value once, at load time, into the
// variant matching op.
func DecodeRuleValue(op Operator, raw []byte) (RuleValue, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: rule value for %s: %v", ErrInvalidArgument, op, err)
	}
	return NewRuleValue(op, v)
}

// NewRuleValue builds the variant for op from an already-decoded value
// (JSON or YAML). Scalars given for set operators become one-element sets.
func NewRuleValue(op Operator, v any) (RuleValue, error) {
	switch op {
	case OpEQ:
		s, ok := normalizeScalar(v)
		if !ok {
			return nil, fmt.Errorf("%w: EQ expects a scalar, got %T", ErrInvalidArgument, v)
		}
		return EqValue{Want: s}, nil
	case OpGTE:
		f, ok := ToNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: GTE expects a number, got %v", ErrInvalidArgument, v)
		}
		return GteValue{Min: f}, nil
	case OpIncludesAny, OpIncludesAll, OpIn:
		set, err := toCanonicalSet(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, op, err)
		}
		switch op {
		case OpIncludesAny:
			return IncludesAnyValue{Set: set}, nil
		case OpIncludesAll:
			return IncludesAllValue{Set: set}, nil
		default:
			return InValue{Set: set}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidArgument, op)
}

// EncodeRuleValue is the inverse of DecodeRuleValue.
func EncodeRuleValue(v RuleValue) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil rule value", ErrInvalidArgument)
	}
	return json.Marshal(v.Expected())
}

// Canonical renders a scalar as the string used for set membership.
// Numbers drop trailing zeros so 5, 5.0 and json 5 all render "5".
func Canonical(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return t.String(), true
	}
	return "", false
}

// ToNumber converts numbers and numeric strings to float64.
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// normalizeScalar turns json.Number and integer types into float64 and
// rejects non-scalars.
func normalizeScalar(v any) (any, bool) {
	switch t := v.(type) {
	case string, bool, float64:
		return t, true
	case json.Number, int, int64, float32:
		f, ok := ToNumber(t)
		return f, ok
	}
	return nil, false
}

func toCanonicalSet(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := Canonical(it)
			if !ok {
				return nil, fmt.Errorf("set member %v is not a scalar", it)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return append([]string{}, t...), nil
	}
	s, ok := Canonical(v)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	return []string{s}, nil
}
