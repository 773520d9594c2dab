package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, New(CodeInvalid, "bad").Status())
	assert.Equal(t, http.StatusNotFound, New(CodeNotFound, "missing").Status())
	assert.Equal(t, http.StatusConflict, New(CodeConflict, "dup").Status())
	assert.Equal(t, http.StatusInternalServerError, New(CodeInternal, "boom").Status())
	assert.Equal(t, http.StatusInternalServerError, New(Code("other"), "boom").Status())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to get users")

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, CodeInternal))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestInternalDoesNotRewrapAppErrors(t *testing.T) {
	notFound := New(CodeNotFound, "User with userId 1 doesn't exist")
	assert.Same(t, notFound, Internal(notFound, "failed"))

	wrapped := Internal(errors.New("boom"), "failed to delete user")
	assert.True(t, IsCode(wrapped, CodeInternal))
}

func TestInvalidFields(t *testing.T) {
	err := Invalid("Validation failed", map[string]string{"email": "must be a valid email address"})
	assert.Equal(t, "must be a valid email address", err.Fields()["email"])
	assert.Nil(t, New(CodeConflict, "x").Fields())
}
