package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/screening-gate/internal/adapter/httpserver"
	"github.com/fairyhunter13/screening-gate/internal/domain"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheck_Pass(t *testing.T) {
	out, err := execute(t, "", "check", "-q", "testdata/questionnaire.yaml", "-a", "testdata/answers_pass.yaml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "gate: PASSED")
	assert.Equal(t, 3, strings.Count(out, "PASS ")+strings.Count(out, "PASS|"), out)
}

func TestCheck_FailReportsEveryRule(t *testing.T) {
	out, err := execute(t, "", "check", "-q", "testdata/questionnaire.yaml", "-a", "testdata/answers_fail.json")
	require.ErrorIs(t, err, errGateFailed)
	assert.Contains(t, out, "gate: FAILED")
	assert.Contains(t, out, "Years of Go")
	assert.Contains(t, out, domain.NotProvided)
	assert.Equal(t, 2, strings.Count(out, "FAIL "), out)
}

func TestCheck_InvalidAnswers(t *testing.T) {
	var buf bytes.Buffer
	color.NoColor = true
	err := runCheck(&buf, domain.Questionnaire{
		Questions: []domain.Question{{Key: "years", Type: domain.QuestionNumber}},
	}, domain.AnswerSet{"years": "many"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, buf.String(), "INVALID years")
}

func TestCheck_RequiresFlags(t *testing.T) {
	_, err := execute(t, "", "check", "-q", "testdata/questionnaire.yaml")
	assert.Error(t, err)
}

func TestSeed_DryRun(t *testing.T) {
	out, err := execute(t, "", "seed", "--dry-run", "testdata/seed.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "1 jobs valid")
}

func TestSeed_MemoryStore(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	out, err := execute(t, "", "seed", "testdata/seed.yaml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "jobs upserted: 1, questionnaires saved: 1, unchanged: 0")
}

func TestSweep_MemoryStore(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	out, err := execute(t, "", "sweep")
	require.NoError(t, err, out)
	assert.Contains(t, out, "in_progress_swept=0 orphaned_passed_swept=0")
}

func TestMigrate_RejectsMemoryStore(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	_, err := execute(t, "", "migrate")
	assert.ErrorContains(t, err, "STORAGE_DRIVER=postgres")
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "hunter2\n", "hash-password")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, httpserver.VerifyPassword("hunter2", hash))

	_, err = execute(t, "", "hash-password")
	assert.Error(t, err)
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, cliName, root.Name())
	for _, name := range []string{"migrate", "seed", "sweep", "check", "hash-password"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}
