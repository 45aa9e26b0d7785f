package docstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kilupskalvis/lexmerge/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateEntry checks the structural contract every backend enforces
// before a write.
func ValidateEntry(e *models.Entry) error {
	if err := validate.Struct(e); err != nil {
		return validationError("validate entry", err)
	}
	seen := make(map[string]bool, len(e.Senses))
	for _, s := range e.Senses {
		if s == nil {
			return models.Errorf(models.KindValidation, "validate entry", "entry %s has a nil sense", e.ID)
		}
		if seen[s.ID] {
			return models.Errorf(models.KindValidation, "validate entry", "entry %s has duplicate sense id %q", e.ID, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// ValidateDescriptor checks the fields required to create a new entry.
func ValidateDescriptor(d models.EntryDescriptor) error {
	if err := validate.Struct(d); err != nil {
		return validationError("validate descriptor", err)
	}
	if strings.TrimSpace(d.Headword) == "" {
		return models.Errorf(models.KindValidation, "validate descriptor", "headword must not be blank")
	}
	return nil
}

func validationError(op string, err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return &models.Error{Kind: models.KindValidation, Op: op, Message: strings.Join(parts, "; "), Err: err}
	}
	return &models.Error{Kind: models.KindValidation, Op: op, Message: err.Error(), Err: err}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
