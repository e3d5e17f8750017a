// Package seed loads jobs and their gate questionnaires from YAML files and
// applies them through the repository ports.
//
// A seed file looks like:
//
//	jobs:
//	  - id: backend-go
//	    title: Backend Engineer
//	    questionnaire:
//	      questions:
//	        - {key: years, label: Years of Go, type: NUMBER, required: true}
//	      rules:
//	        - {question_key: years, operator: GTE, value: 3}
//
// Re-applying an unchanged file is a no-op for questionnaires: a new version
// is saved only when its content fingerprint differs from the current one.
package seed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// File is the root of a seed document.
type File struct {
	Jobs []JobDoc `yaml:"jobs"`
}

// JobDoc is one job posting and, optionally, its questionnaire.
type JobDoc struct {
	ID            string            `yaml:"id"`
	Title         string            `yaml:"title"`
	Status        string            `yaml:"status"`
	ExpiresAt     *time.Time        `yaml:"expires_at"`
	Questionnaire *QuestionnaireDoc `yaml:"questionnaire"`
}

// QuestionnaireDoc is the YAML form of a questionnaire. List order becomes
// OrderIndex.
type QuestionnaireDoc struct {
	Questions []QuestionDoc `yaml:"questions"`
	Rules     []RuleDoc     `yaml:"rules"`
}

type QuestionDoc struct {
	Key      string   `yaml:"key"`
	Label    string   `yaml:"label"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Options  []string `yaml:"options"`
}

type RuleDoc struct {
	QuestionKey string `yaml:"question_key"`
	Operator    string `yaml:"operator"`
	Value       any    `yaml:"value"`
}

// Result counts what Apply changed.
type Result struct {
	Jobs                int
	QuestionnairesSaved int
	Unchanged           int
}

// ReadFile reads a seed file, confined to the working directory unless
// SEED_ALLOW_ABSPATHS=1.
func ReadFile(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)
	wd = filepath.Clean(wd)
	if os.Getenv("SEED_ALLOW_ABSPATHS") != "1" {
		if !strings.HasPrefix(abs, wd+string(os.PathSeparator)) && abs != wd {
			return nil, fmt.Errorf("%w: disallowed path %s", domain.ErrInvalidArgument, abs)
		}
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: seed file %s", domain.ErrNotFound, path)
		}
		return nil, err
	}
	return b, nil
}

// Load reads and parses a seed file.
func Load(path string) (File, error) {
	b, err := ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return Parse(b)
}

// Parse decodes a seed document, rejecting unknown fields, and checks every
// job converts cleanly.
func Parse(b []byte) (File, error) {
	var f File
	if err := decodeStrict(b, &f); err != nil {
		return File{}, err
	}
	if len(f.Jobs) == 0 {
		return File{}, fmt.Errorf("%w: seed file has no jobs", domain.ErrInvalidArgument)
	}
	seen := map[string]struct{}{}
	for i, j := range f.Jobs {
		if strings.TrimSpace(j.ID) == "" {
			return File{}, fmt.Errorf("%w: jobs[%d]: id is required", domain.ErrInvalidArgument, i)
		}
		if _, dup := seen[j.ID]; dup {
			return File{}, fmt.Errorf("%w: jobs[%d]: duplicate id %q", domain.ErrInvalidArgument, i, j.ID)
		}
		seen[j.ID] = struct{}{}
		if _, err := j.Job(); err != nil {
			return File{}, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if j.Questionnaire != nil {
			if _, err := j.Questionnaire.Build(j.ID); err != nil {
				return File{}, fmt.Errorf("jobs[%d] (%s): %w", i, j.ID, err)
			}
		}
	}
	return f, nil
}

// ParseQuestionnaire decodes a standalone questionnaire document.
func ParseQuestionnaire(b []byte) (domain.Questionnaire, error) {
	var d QuestionnaireDoc
	if err := decodeStrict(b, &d); err != nil {
		return domain.Questionnaire{}, err
	}
	return d.Build("")
}

// ParseAnswers decodes a YAML or JSON mapping into an AnswerSet shaped as
// if it came from a JSON request body.
func ParseAnswers(b []byte) (domain.AnswerSet, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: answers: %v", domain.ErrInvalidArgument, err)
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: answers: %v", domain.ErrInvalidArgument, err)
	}
	out := domain.AnswerSet{}
	if err := json.Unmarshal(js, &out); err != nil {
		return nil, fmt.Errorf("%w: answers: %v", domain.ErrInvalidArgument, err)
	}
	return out, nil
}

func decodeStrict(b []byte, dst any) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: yaml parse: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// Job converts the document into a domain job, defaulting status to ACTIVE.
func (d JobDoc) Job() (domain.Job, error) {
	status := domain.JobStatus(strings.ToUpper(strings.TrimSpace(d.Status)))
	switch status {
	case "":
		status = domain.JobActive
	case domain.JobActive, domain.JobPaused, domain.JobClosed:
	default:
		return domain.Job{}, fmt.Errorf("%w: unknown job status %q", domain.ErrInvalidArgument, d.Status)
	}
	return domain.Job{ID: d.ID, Title: d.Title, Status: status, ExpiresAt: d.ExpiresAt}, nil
}

// Build converts the document into a domain questionnaire for jobID.
func (d QuestionnaireDoc) Build(jobID string) (domain.Questionnaire, error) {
	qn := domain.Questionnaire{JobID: jobID}
	ve := &domain.ValidationError{}
	keys := map[string]struct{}{}
	for i, q := range d.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		qt := domain.QuestionType(strings.ToUpper(strings.TrimSpace(q.Type)))
		if q.Key == "" {
			ve.Add(field+".key", "REQUIRED", "question key is required")
		}
		if _, dup := keys[q.Key]; dup && q.Key != "" {
			ve.Add(field+".key", "DUPLICATE", "duplicate question key "+q.Key)
		}
		keys[q.Key] = struct{}{}
		if !qt.Valid() {
			ve.Add(field+".type", "INVALID_VALUE", "unknown question type "+q.Type)
		}
		if (qt == domain.QuestionSingleSelect || qt == domain.QuestionMultiSelect) && len(q.Options) == 0 {
			ve.Add(field+".options", "REQUIRED", "select questions need options")
		}
		qn.Questions = append(qn.Questions, domain.Question{
			Key:        q.Key,
			Label:      q.Label,
			Type:       qt,
			Required:   q.Required,
			Options:    q.Options,
			OrderIndex: i,
		})
	}
	for i, r := range d.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if r.QuestionKey == "" {
			ve.Add(field+".question_key", "REQUIRED", "rule question key is required")
		}
		op, err := domain.ParseOperator(r.Operator)
		if err != nil {
			ve.Add(field+".operator", "INVALID_VALUE", err.Error())
			continue
		}
		val, err := domain.NewRuleValue(op, r.Value)
		if err != nil {
			ve.Add(field+".value", "INVALID_VALUE", err.Error())
			continue
		}
		qn.Rules = append(qn.Rules, domain.GateRule{QuestionKey: r.QuestionKey, Value: val, OrderIndex: i})
	}
	if err := ve.OrNil(); err != nil {
		return domain.Questionnaire{}, err
	}
	return qn, nil
}

// Fingerprint hashes the questionnaire's content, ignoring ids and timestamps.
func Fingerprint(qn domain.Questionnaire) string {
	qs := append([]domain.Question(nil), qn.Questions...)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].OrderIndex < qs[j].OrderIndex })
	rs := append([]domain.GateRule(nil), qn.Rules...)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].OrderIndex < rs[j].OrderIndex })

	h := sha256.New()
	for _, q := range qs {
		fmt.Fprintf(h, "q|%s|%s|%s|%t|%s\n", q.Key, q.Label, q.Type, q.Required, strings.Join(q.Options, ","))
	}
	for _, r := range rs {
		val, _ := domain.EncodeRuleValue(r.Value)
		fmt.Fprintf(h, "r|%s|%s|%s\n", r.QuestionKey, r.Operator(), val)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Apply upserts every job and saves each questionnaire whose content changed.
func Apply(ctx domain.Context, jobs domain.JobRepository, qs domain.QuestionnaireRepository, f File) (Result, error) {
	var res Result
	for _, d := range f.Jobs {
		job, err := d.Job()
		if err != nil {
			return res, err
		}
		if err := jobs.Upsert(ctx, job); err != nil {
			return res, fmt.Errorf("seed job %s: %w", job.ID, err)
		}
		res.Jobs++
		if d.Questionnaire == nil {
			continue
		}
		qn, err := d.Questionnaire.Build(job.ID)
		if err != nil {
			return res, err
		}
		current, err := qs.GetCurrentByJob(ctx, job.ID)
		if err != nil {
			return res, fmt.Errorf("seed questionnaire %s: %w", job.ID, err)
		}
		if current.ID != "" && Fingerprint(current) == Fingerprint(qn) {
			res.Unchanged++
			continue
		}
		if _, err := qs.Save(ctx, qn); err != nil {
			return res, fmt.Errorf("seed questionnaire %s: %w", job.ID, err)
		}
		res.QuestionnairesSaved++
	}
	slog.Info("seed applied",
		slog.Int("jobs", res.Jobs),
		slog.Int("questionnaires_saved", res.QuestionnairesSaved),
		slog.Int("unchanged", res.Unchanged),
	)
	return res, nil
}
