package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var stepIndexPattern = regexp.MustCompile(`Steps\[(\d+)\]`)

// DefinitionError reports a task definition that can never run: a missing
// name or config, an empty step list, an unknown step type, or a step config
// rejected by its capability. StepIndex is -1 when the problem is not tied to
// a particular step.
type DefinitionError struct {
	Field     string
	StepIndex int
	Reason    string
}

func (e *DefinitionError) Error() string {
	if e.StepIndex >= 0 {
		return fmt.Sprintf("invalid task definition: step %d: %s: %s", e.StepIndex, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid task definition: %s: %s", e.Field, e.Reason)
}

// IsDefinitionError reports whether err is or wraps a *DefinitionError.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

// ValidateTask checks the structural rules every saved task must satisfy.
// It does not know which step types exist; that check belongs to the step
// registry.
func ValidateTask(name string, cfg *TaskConfig) error {
	if strings.TrimSpace(name) == "" {
		return &DefinitionError{Field: "name", StepIndex: -1, Reason: "name is required"}
	}
	if cfg == nil {
		return &DefinitionError{Field: "config", StepIndex: -1, Reason: "config is required"}
	}

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate task: %w", err)
	}

	fe := verrs[0]
	de := &DefinitionError{
		Field:     jsonFieldName(fe.Field()),
		StepIndex: -1,
		Reason:    describeRule(fe),
	}
	if m := stepIndexPattern.FindStringSubmatch(fe.Namespace()); m != nil {
		de.StepIndex, _ = strconv.Atoi(m[1])
	}
	return de
}

func jsonFieldName(field string) string {
	switch field {
	case "Steps":
		return "steps"
	case "Type":
		return "type"
	case "ResponseVariable":
		return "responseVariable"
	default:
		return strings.ToLower(field)
	}
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s entry", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}
