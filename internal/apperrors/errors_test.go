package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("verify: %w", NewInvalidCode())

	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.NotErrorIs(t, err, ErrOTPExpired)
}

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	de := ToDomainError(fmt.Errorf("wrapped: %w", NewNotFound("Appointment")))

	assert.Equal(t, CodeNotFound, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	assert.Equal(t, "Appointment not found", de.Message)
}

func TestToDomainErrorHidesUnknownCauses(t *testing.T) {
	cause := errors.New("connection reset by peer")
	de := ToDomainError(cause)

	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.NotContains(t, de.Message, "connection reset")
	assert.ErrorIs(t, de, cause)
}

func TestSentinelIsNotAResponse(t *testing.T) {
	de := ToDomainError(ErrNotFound)

	assert.Equal(t, CodeInternal, de.Code)
}

func TestNotificationFailedIsDistinctFromInternal(t *testing.T) {
	de := ToDomainError(NewNotificationFailed(errors.New("smtp: 535")))

	assert.Equal(t, CodeNotificationFailed, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.ErrorIs(t, de, ErrNotificationFailed)
}

func TestToDomainErrorNil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
}
