package transport

import (
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-reconcile/core"
)

// transportFailure wraps cause, which may be nil, with a text code that
// follows the failure category.
func transportFailure(cause error, category goerrors.Category, message string, metadata map[string]any) error {
	textCode := core.ErrorInternal
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		textCode = core.ErrorInvalidPayload
	case goerrors.CategoryExternal:
		textCode = core.ErrorRemoteUnavailable
	}
	return core.WrapError(cause, category, message, textCode, metadata)
}
