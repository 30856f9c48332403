package domain

import (
	"fmt"

	"post-lab/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateInput re-checks the create DTO defensively. Upstream request
// validation should already have rejected malformed input, but the service
// never trusts that.
func ValidateInput(input PostInput) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}
