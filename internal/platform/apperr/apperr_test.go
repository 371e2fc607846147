package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	sentinel := Conflict("serial already exists")

	assert.Equal(t, KindConflict, KindOf(sentinel))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("create equipment: %w", sentinel)))
	assert.Equal(t, KindInternal, KindOf(errors.New("connection reset")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusBadRequest,
		KindUnauthenticated: http.StatusUnauthorized,
		KindForbidden:       http.StatusForbidden,
		KindTooLarge:        http.StatusRequestEntityTooLarge,
		KindInternal:        http.StatusBadRequest,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestSentinelIdentitySurvivesWrapping(t *testing.T) {
	sentinel := NotFound("patient not found")
	err := fmt.Errorf("assign: %w", sentinel)
	assert.ErrorIs(t, err, sentinel)
	assert.NotErrorIs(t, err, NotFound("patient not found"))
}

func TestInternalUnwraps(t *testing.T) {
	cause := errors.New("pool closed")
	err := Internal("list patients", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "list patients: pool closed", err.Error())
}

func TestViolations(t *testing.T) {
	v := Violations{}
	require.NoError(t, v.Err())

	v.Require("nom", "  ")
	v.Require("prenom", "Jean")
	v.Add("email", "invalid format")
	v.Add("email", "second message ignored")

	err := v.Err()
	require.Error(t, err)

	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, KindValidation, appErr.Kind)
	assert.Equal(t, map[string]string{"nom": "is required", "email": "invalid format"}, appErr.Fields)
	assert.Equal(t, "email: invalid format; nom: is required", appErr.Message)
}

func TestInvalid(t *testing.T) {
	err := Invalid("statut", "unknown value")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, "unknown value", err.Fields["statut"])
}
