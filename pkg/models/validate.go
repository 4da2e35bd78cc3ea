package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/collabhub/notifyclient/pkg/constants"
)

// validator.Validate caches struct metadata and is safe for concurrent use.
var validate = validator.New()

// Validate checks a notification received from the server before it is
// allowed into the store.
func Validate(n *Notification) error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("%w: id %d: %v", constants.ErrInvalidPayload, n.ID, err)
	}
	return nil
}

// ValidateAction checks a single action before it is triggered.
func ValidateAction(a *Action) error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: action %q: %v", constants.ErrInvalidPayload, a.Text, err)
	}
	return nil
}
