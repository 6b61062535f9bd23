package httputil

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/minndara/site-admin/pkg/errors"
)

var tagMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
	"min":      "is too small",
	"max":      "is too long",
	"oneof":    "has an unsupported value",
}

// BindingError turns a gin binding failure into a 400 naming the offending
// fields by their json names.
func BindingError(err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.BadRequest("invalid request body", err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %s validation", fe.Tag())
		}
		parts = append(parts, fe.Field()+" "+msg)
	}
	return errors.BadRequest(strings.Join(parts, "; "), err)
}
