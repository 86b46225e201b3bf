package browser

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultModel is the chat model used when a task names none.
const DefaultModel = "gpt-4o-mini"

// DefaultMaxSteps bounds the agent's decision loop.
const DefaultMaxSteps = 30

// Task is a browse request.
type Task struct {
	Task          string            `json:"task" validate:"required"`
	Model         string            `json:"model,omitempty"`
	SensitiveData map[string]string `json:"sensitive_data,omitempty"`
	Email         string            `json:"email,omitempty" validate:"omitempty,email"`
}

var validate = validator.New()

// Validate checks the task and fills defaults.
func (t *Task) Validate() error {
	t.Task = strings.TrimSpace(t.Task)
	if t.Model == "" {
		t.Model = DefaultModel
	}
	if err := validate.Struct(t); err != nil {
		var msgs []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed on rule '%s'", e.Field(), e.Tag()))
			}
			return fmt.Errorf("invalid task: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid task: %w", err)
	}
	return nil
}
