package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/screening-gate/internal/domain"
	"github.com/fairyhunter13/screening-gate/internal/gate"
	"github.com/fairyhunter13/screening-gate/internal/seed"
)

var errGateFailed = errors.New("gate failed")

func newCheckCmd() *cobra.Command {
	var qPath, aPath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "evaluate an answers file against a questionnaire offline",
		Long:  "check runs the gate evaluator without storage and prints one row per rule. Exit status 2 means the gate failed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qb, err := seed.ReadFile(qPath)
			if err != nil {
				return err
			}
			qn, err := seed.ParseQuestionnaire(qb)
			if err != nil {
				return err
			}
			ab, err := seed.ReadFile(aPath)
			if err != nil {
				return err
			}
			answers, err := seed.ParseAnswers(ab)
			if err != nil {
				return err
			}
			return runCheck(cmd.OutOrStdout(), qn, answers)
		},
	}
	cmd.Flags().StringVarP(&qPath, "questionnaire", "q", "", "questionnaire YAML (questions + rules)")
	cmd.Flags().StringVarP(&aPath, "answers", "a", "", "answers YAML or JSON mapping")
	_ = cmd.MarkFlagRequired("questionnaire")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

// runCheck validates answer shapes, renders the rule table and returns
// errGateFailed when any rule fails.
func runCheck(w io.Writer, qn domain.Questionnaire, answers domain.AnswerSet) error {
	if err := gate.ValidateAnswers(qn.Questions, answers); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			for _, f := range ve.Fields {
				fmt.Fprintf(w, "%s %s: %s\n", color.YellowString("INVALID"), f.Field, f.Message)
			}
		}
		return err
	}

	outcomes := gate.EvaluateEach(qn.Rules, qn.Questions, answers)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Question", "Operator", "Expected", "Actual", "Result"})
	table.SetAutoWrapText(false)
	passed := true
	for i, o := range outcomes {
		label := o.Rule.QuestionKey
		if q, ok := qn.QuestionByKey(o.Rule.QuestionKey); ok && q.Label != "" {
			label = q.Label
		}
		expected, _ := domain.EncodeRuleValue(o.Rule.Value)
		actual := any(domain.NotProvided)
		if v, ok := answers[o.Rule.QuestionKey]; ok && !gate.IsBlank(v) {
			actual = v
		}
		result := color.GreenString("PASS")
		if !o.Passed {
			result = color.RedString("FAIL")
			passed = false
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			label,
			string(o.Rule.Operator()),
			string(expected),
			fmt.Sprintf("%v", actual),
			result,
		})
	}
	table.Render()

	if !passed {
		fmt.Fprintln(w, color.RedString("gate: FAILED"))
		return errGateFailed
	}
	fmt.Fprintln(w, color.GreenString("gate: PASSED"))
	return nil
}
