package gate

import (
	"sort"
	"strings"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// Resolution is the merged answer set and the required keys still unanswered.
type Resolution struct {
	Merged  domain.AnswerSet
	Missing []string
}

// Resolve merges saved and provided answers, provided winning per key, and
// lists required keys whose merged value is blank, in requiredKeys order.
// provided may be nil.
func Resolve(requiredKeys []string, saved, provided domain.AnswerSet) Resolution {
	merged := make(domain.AnswerSet, len(saved)+len(provided))
	for k, v := range saved {
		merged[k] = v
	}
	for k, v := range provided {
		merged[k] = v
	}
	missing := []string{}
	for _, k := range requiredKeys {
		if IsBlank(merged[k]) {
			missing = append(missing, k)
		}
	}
	return Resolution{Merged: merged, Missing: missing}
}

// IsBlank reports whether an answer counts as not given: nil or an empty string.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

// RequiredKeys lists the keys a candidate must answer before one-click can
// evaluate: required questions by OrderIndex, then keys referenced only by
// rules, in rule OrderIndex order. Duplicates are removed.
func RequiredKeys(questions []domain.Question, rules []domain.GateRule) []string {
	qs := append([]domain.Question(nil), questions...)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].OrderIndex < qs[j].OrderIndex })
	rs := append([]domain.GateRule(nil), rules...)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].OrderIndex < rs[j].OrderIndex })

	ruleKeys := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		ruleKeys[r.QuestionKey] = struct{}{}
	}
	seen := map[string]struct{}{}
	out := []string{}
	add := func(k string) {
		if strings.TrimSpace(k) == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, q := range qs {
		if _, gated := ruleKeys[q.Key]; q.Required || gated {
			add(q.Key)
		}
	}
	for _, r := range rs {
		add(r.QuestionKey)
	}
	return out
}

// QuestionsFor returns the questions matching keys, in keys order.
// Keys without a question are skipped.
func QuestionsFor(questions []domain.Question, keys []string) []domain.Question {
	byKey := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byKey[q.Key] = q
	}
	out := make([]domain.Question, 0, len(keys))
	for _, k := range keys {
		if q, ok := byKey[k]; ok {
			out = append(out, q)
		}
	}
	return out
}

// Restrict returns the subset of answers whose keys appear in keys.
func Restrict(answers domain.AnswerSet, keys []string) domain.AnswerSet {
	out := domain.AnswerSet{}
	for _, k := range keys {
		if v, ok := answers[k]; ok && !IsBlank(v) {
			out[k] = v
		}
	}
	return out
}

// NonBlank drops blank answers, leaving what is worth persisting for reuse.
func NonBlank(answers domain.AnswerSet) domain.AnswerSet {
	out := make(domain.AnswerSet, len(answers))
	for k, v := range answers {
		if !IsBlank(v) {
			out[k] = v
		}
	}
	return out
}
