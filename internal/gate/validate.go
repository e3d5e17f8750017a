package gate

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// ValidateAnswers checks each supplied answer against its question's declared
// type. Blank answers and keys with no matching question are not checked.
// The returned error is a *domain.ValidationError listing every bad field.
func ValidateAnswers(questions []domain.Question, answers domain.AnswerSet) error {
	byKey := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byKey[q.Key] = q
	}
	ve := &domain.ValidationError{}
	for key, v := range answers {
		if IsBlank(v) {
			continue
		}
		q, ok := byKey[key]
		if !ok {
			continue
		}
		if code, msg := checkShape(q, v); code != "" {
			ve.Add(key, code, msg)
		}
	}
	return ve.OrNil()
}

func checkShape(q domain.Question, v any) (code, msg string) {
	switch q.Type {
	case domain.QuestionBoolean:
		switch t := v.(type) {
		case bool:
			return "", ""
		case string:
			s := strings.ToLower(strings.TrimSpace(t))
			if s == "true" || s == "false" {
				return "", ""
			}
		}
		return "INVALID_TYPE", "must be a boolean"
	case domain.QuestionNumber:
		if _, ok := v.(bool); !ok {
			if _, ok := domain.ToNumber(v); ok {
				return "", ""
			}
		}
		return "INVALID_TYPE", "must be a number"
	case domain.QuestionSingleSelect:
		s, ok := v.(string)
		if !ok {
			return "INVALID_TYPE", "must be a single option"
		}
		if !hasOption(q.Options, s) {
			return "INVALID_OPTION", fmt.Sprintf("%q is not an allowed option", s)
		}
		return "", ""
	case domain.QuestionMultiSelect:
		items, ok := stringList(v)
		if !ok {
			return "INVALID_TYPE", "must be a list of options"
		}
		for _, s := range items {
			if !hasOption(q.Options, s) {
				return "INVALID_OPTION", fmt.Sprintf("%q is not an allowed option", s)
			}
		}
		return "", ""
	case domain.QuestionCountry:
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return "INVALID_TYPE", "must be a country"
		}
		return "", ""
	}
	return "", ""
}

// hasOption accepts anything when the question declares no options.
func hasOption(options []string, s string) bool {
	if len(options) == 0 {
		return true
	}
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

func stringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
