package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// Request bodies.

type evaluateRequest struct {
	Answers domain.AnswerSet `json:"answers"`
}

type submitRequest struct {
	CandidateName string `json:"candidate_name" validate:"max=500"`
	ResumeRef     string `json:"resume_ref" validate:"required,max=2048"`
}

type oneClickRequest struct {
	CandidateName string           `json:"candidate_name" validate:"max=500"`
	ResumeRef     string           `json:"resume_ref" validate:"required,max=2048"`
	Answers       domain.AnswerSet `json:"answers"`
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New(validator.WithRequiredStructEnabled())
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// decodeJSON reads at most maxBytes of JSON into dst and runs struct
// validation. An empty body decodes as an empty object.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var be *http.MaxBytesError
		if errors.As(err, &be) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidArgument, err)
	}
	return validateStruct(dst)
}

// validateStruct converts validator failures into a *domain.ValidationError.
func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	ve := &domain.ValidationError{}
	for _, fe := range verrs {
		ve.Add(fe.Field(), strings.ToUpper(fe.Tag()), fieldMessage(fe))
	}
	return ve.OrNil()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid"
}

var jobIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateJobID checks a job id path parameter.
func ValidateJobID(jobID string) error {
	ve := &domain.ValidationError{}
	switch {
	case jobID == "":
		ve.Add("job_id", "REQUIRED", "job id is required")
	case len(jobID) > 100:
		ve.Add("job_id", "TOO_LONG", "job id is too long (max 100 characters)")
	case !jobIDPattern.MatchString(jobID):
		ve.Add("job_id", "INVALID_FORMAT", "job id contains invalid characters")
	}
	return ve.OrNil()
}

// ValidateSessionToken checks that a token looks like one we issued. A
// malformed token cannot exist, so it is reported as not found.
func ValidateSessionToken(token string) error {
	if err := getValidator().Var(token, "required,hexadecimal,len=64"); err != nil {
		return fmt.Errorf("%w: session", domain.ErrNotFound)
	}
	return nil
}

// ValidateCandidateEmail checks the upstream identity header.
func ValidateCandidateEmail(email string) error {
	if err := getValidator().Var(email, "required,email,max=254"); err != nil {
		ve := &domain.ValidationError{}
		ve.Add("candidate_email", "UNAUTHENTICATED", "an authenticated candidate email is required in "+CandidateEmailHeader)
		return ve.OrNil()
	}
	return nil
}
