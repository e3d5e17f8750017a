package gate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

func TestResolve_ProvidedWins(t *testing.T) {
	t.Parallel()
	res := Resolve([]string{"a", "b"}, domain.AnswerSet{"a": 1.0, "b": 2.0}, domain.AnswerSet{"b": 3.0})
	assert.Equal(t, domain.AnswerSet{"a": 1.0, "b": 3.0}, res.Merged)
	assert.Empty(t, res.Missing)
}

func TestResolve_MissingInRequiredOrder(t *testing.T) {
	t.Parallel()
	res := Resolve([]string{"a", "b", "c"}, domain.AnswerSet{"a": 1.0}, nil)
	assert.Equal(t, []string{"b", "c"}, res.Missing)
}

func TestResolve_BlankValuesCountAsMissing(t *testing.T) {
	t.Parallel()
	saved := domain.AnswerSet{"a": "", "b": nil, "c": false, "d": 0.0}
	res := Resolve([]string{"a", "b", "c", "d"}, saved, domain.AnswerSet{})
	assert.Equal(t, []string{"a", "b"}, res.Missing, "false and 0 are real answers")
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	t.Parallel()
	saved := domain.AnswerSet{"a": 1.0}
	provided := domain.AnswerSet{"a": 2.0}
	res := Resolve(nil, saved, provided)
	res.Merged["z"] = true
	assert.Equal(t, domain.AnswerSet{"a": 1.0}, saved)
	assert.Equal(t, domain.AnswerSet{"a": 2.0}, provided)
}

func TestRequiredKeys(t *testing.T) {
	t.Parallel()
	questions := []domain.Question{
		{Key: "notice", Required: true, OrderIndex: 3},
		{Key: "years", OrderIndex: 1},
		{Key: "hobby", OrderIndex: 2},
	}
	rules := []domain.GateRule{
		{QuestionKey: "ghost", OrderIndex: 5, Value: domain.EqValue{Want: "x"}},
		{QuestionKey: "years", OrderIndex: 1, Value: domain.GteValue{Min: 1}},
		{QuestionKey: "years", OrderIndex: 2, Value: domain.GteValue{Min: 0}},
	}
	assert.Equal(t, []string{"years", "notice", "ghost"}, RequiredKeys(questions, rules))
	assert.Empty(t, RequiredKeys(nil, nil))
}

func TestQuestionsForAndRestrict(t *testing.T) {
	t.Parallel()
	questions := []domain.Question{{Key: "a"}, {Key: "b"}}
	got := QuestionsFor(questions, []string{"b", "missing", "a"})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Key)
	assert.Equal(t, "a", got[1].Key)

	r := Restrict(domain.AnswerSet{"a": 1.0, "b": "", "x": true}, []string{"a", "b"})
	assert.Equal(t, domain.AnswerSet{"a": 1.0}, r)
}

func TestValidateAnswers(t *testing.T) {
	t.Parallel()
	err := ValidateAnswers(testQuestions, domain.AnswerSet{
		"years_endur": "3",
		"languages":   []any{"English"},
		"work_permit": "TRUE",
		"country":     "DE",
		"unknown_key": map[string]any{"free": "form"},
		"nullable":    nil,
	})
	require.NoError(t, err)

	// blank answers count as not given
	err = ValidateAnswers(testQuestions, domain.AnswerSet{"country": "", "years_endur": ""})
	require.NoError(t, err)

	err = ValidateAnswers(testQuestions, domain.AnswerSet{
		"years_endur": true,
		"languages":   []any{"Klingon"},
		"work_permit": "maybe",
		"country":     "   ",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 4)
	assert.Equal(t, "country", ve.Fields[0].Field)
	assert.Equal(t, "languages", ve.Fields[1].Field)
	assert.Equal(t, "INVALID_OPTION", ve.Fields[1].Code)
	assert.Equal(t, "work_permit", ve.Fields[2].Field)
	assert.Equal(t, "years_endur", ve.Fields[3].Field)
}

func TestValidateAnswers_SingleSelect(t *testing.T) {
	t.Parallel()
	qs := []domain.Question{{Key: "seniority", Type: domain.QuestionSingleSelect, Options: []string{"junior", "senior"}}}
	require.NoError(t, ValidateAnswers(qs, domain.AnswerSet{"seniority": "senior"}))
	require.Error(t, ValidateAnswers(qs, domain.AnswerSet{"seniority": "lead"}))
	require.Error(t, ValidateAnswers(qs, domain.AnswerSet{"seniority": []any{"senior"}}))
}

func TestNonBlank(t *testing.T) {
	got := NonBlank(domain.AnswerSet{"a": "", "b": nil, "c": false, "d": 0.0, "e": "x"})
	assert.Equal(t, domain.AnswerSet{"c": false, "d": 0.0, "e": "x"}, got)
}
