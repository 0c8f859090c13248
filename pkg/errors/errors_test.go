package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"vroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	plain := New(ErrCodeNotFound, "room not found", http.StatusNotFound)
	assert.Equal(t, "NOT_FOUND: room not found", plain.Error())

	wrapped := Wrap(domain.ErrRoomNotFound, ErrCodeNotFound, "room not found", http.StatusNotFound)
	assert.Contains(t, wrapped.Error(), "caused by")
	assert.ErrorIs(t, wrapped, domain.ErrRoomNotFound)
}

func TestFromDomain(t *testing.T) {
	cases := []struct {
		err    error
		code   ErrorCode
		status int
	}{
		{domain.ErrRoomNotFound, ErrCodeNotFound, http.StatusNotFound},
		{domain.ErrAssetNotFound, ErrCodeNotFound, http.StatusNotFound},
		{domain.ErrStreamNotFound, ErrCodeNotFound, http.StatusNotFound},
		{domain.ErrRoomFull, ErrCodeRoomFull, http.StatusConflict},
		{domain.ErrRoomClosed, ErrCodeForbidden, http.StatusForbidden},
		{domain.ErrForbidden, ErrCodeForbidden, http.StatusForbidden},
		{domain.ErrNotMember, ErrCodeForbidden, http.StatusForbidden},
		{domain.ErrStreamConflict, ErrCodeConflict, http.StatusConflict},
		{domain.ErrStreamNotLive, ErrCodeNotLive, http.StatusGone},
		{stderrors.New("database exploded"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		appErr := FromDomain(tc.err)
		assert.Equal(t, tc.code, appErr.Code, "for %v", tc.err)
		assert.Equal(t, tc.status, appErr.HTTPStatus, "for %v", tc.err)
		assert.ErrorIs(t, appErr, tc.err)
	}
}

func TestFromDomain_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("join: %w", domain.ErrRoomFull)
	appErr := FromDomain(err)
	assert.Equal(t, ErrCodeRoomFull, appErr.Code)
}

func TestGetAppError(t *testing.T) {
	appErr := NewForbiddenError("nope")

	require.Equal(t, appErr, GetAppError(appErr))
	require.Equal(t, appErr, GetAppError(fmt.Errorf("handler: %w", appErr)))
	assert.Nil(t, GetAppError(stderrors.New("plain")))
	assert.Nil(t, GetAppError(nil))
}
