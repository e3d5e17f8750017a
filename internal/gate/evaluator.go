// Package gate implements the eligibility gate: rule evaluation, answer shape
// validation and the saved/provided answer merge used by one-click apply.
// Everything here is pure and performs no I/O.
package gate

import (
	"sort"
	"strings"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// RuleOutcome is the verdict of one rule, with its failure detail when it failed.
type RuleOutcome struct {
	Rule   domain.GateRule
	Passed bool
	Detail domain.FailureDetail
}

// Evaluate runs every rule against answers and reports the overall verdict
// plus one FailureDetail per failing rule, ordered by rule OrderIndex.
// No rule short-circuits another; an empty rule set passes.
func Evaluate(rules []domain.GateRule, questions []domain.Question, answers domain.AnswerSet) domain.GateResult {
	res := domain.GateResult{Passed: true, FailedRules: []domain.FailureDetail{}}
	for _, o := range EvaluateEach(rules, questions, answers) {
		if o.Passed {
			continue
		}
		res.Passed = false
		res.FailedRules = append(res.FailedRules, o.Detail)
	}
	return res
}

// EvaluateEach returns the outcome of every rule in OrderIndex order.
func EvaluateEach(rules []domain.GateRule, questions []domain.Question, answers domain.AnswerSet) []RuleOutcome {
	byKey := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byKey[q.Key] = q
	}
	ordered := append([]domain.GateRule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].OrderIndex < ordered[j].OrderIndex })

	out := make([]RuleOutcome, 0, len(ordered))
	for _, r := range ordered {
		var qp *domain.Question
		if q, ok := byKey[r.QuestionKey]; ok {
			qp = &q
		}
		actual := answers[r.QuestionKey]
		o := RuleOutcome{Rule: r, Passed: RulePasses(r, qp, actual)}
		if !o.Passed {
			o.Detail = failureDetail(r, qp, actual)
		}
		out = append(out, o)
	}
	return out
}

// RulePasses evaluates a single rule. q may be nil when the rule's key has no
// matching question; the rule is still evaluated, without type coercion.
func RulePasses(r domain.GateRule, q *domain.Question, actual any) bool {
	switch v := r.Value.(type) {
	case domain.EqValue:
		if actual == nil {
			return false
		}
		return looseEqual(coerce(q, actual), coerce(q, v.Want))
	case domain.GteValue:
		n, ok := domain.ToNumber(actual)
		if !ok {
			n = 0
		}
		return n >= v.Min
	case domain.IncludesAnyValue:
		if len(v.Set) == 0 {
			return true
		}
		have := answerSet(actual)
		for _, want := range v.Set {
			if _, ok := have[want]; ok {
				return true
			}
		}
		return false
	case domain.IncludesAllValue:
		have := answerSet(actual)
		for _, want := range v.Set {
			if _, ok := have[want]; !ok {
				return false
			}
		}
		return true
	case domain.InValue:
		if actual == nil {
			return false
		}
		s, ok := domain.Canonical(coerce(q, actual))
		if !ok {
			return false
		}
		for _, member := range v.Set {
			if member == s {
				return true
			}
		}
		return false
	}
	// A rule without a decoded value can never be satisfied.
	return false
}

func failureDetail(r domain.GateRule, q *domain.Question, actual any) domain.FailureDetail {
	label := r.QuestionKey
	if q != nil && strings.TrimSpace(q.Label) != "" {
		label = q.Label
	}
	d := domain.FailureDetail{
		QuestionKey: r.QuestionKey,
		Label:       label,
		Operator:    r.Operator(),
		Actual:      actual,
	}
	if r.Value != nil {
		d.Expected = r.Value.Expected()
	}
	if IsBlank(actual) {
		d.Actual = domain.NotProvided
	}
	return d
}

// coerce normalises a value according to the declared question type.
// Without a question only numeric representations are unified.
func coerce(q *domain.Question, v any) any {
	if q != nil {
		switch q.Type {
		case domain.QuestionBoolean:
			if s, ok := v.(string); ok {
				switch strings.ToLower(strings.TrimSpace(s)) {
				case "true":
					return true
				case "false":
					return false
				}
			}
		case domain.QuestionNumber:
			if s, ok := v.(string); ok {
				if f, ok := domain.ToNumber(s); ok {
					return f
				}
			}
		}
	}
	switch v.(type) {
	case string, bool, nil:
		return v
	}
	if f, ok := domain.ToNumber(v); ok {
		return f
	}
	return v
}

// looseEqual compares scalars by kind, falling back to their canonical string
// form when kinds differ (so 5 equals "5" for an untyped key).
func looseEqual(a, b any) bool {
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			return af == bf
		}
	}
	as, ok := domain.Canonical(a)
	if !ok {
		return false
	}
	bs, ok := domain.Canonical(b)
	if !ok {
		return false
	}
	return as == bs
}

// answerSet coerces a list answer to a canonical string set.
// Missing and non-list answers yield the empty set.
func answerSet(v any) map[string]struct{} {
	out := map[string]struct{}{}
	switch t := v.(type) {
	case []any:
		for _, it := range t {
			if s, ok := domain.Canonical(it); ok {
				out[s] = struct{}{}
			}
		}
	case []string:
		for _, s := range t {
			out[s] = struct{}{}
		}
	}
	return out
}
