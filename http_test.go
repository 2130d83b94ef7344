package accounts

import (
	stderrors "errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{
			name:    "missing header",
			header:  "",
			wantErr: ErrTokenMissing,
		},
		{
			name:    "blank header",
			header:  "   ",
			wantErr: ErrTokenMissing,
		},
		{
			name:    "scheme without token",
			header:  "Bearer",
			wantErr: ErrTokenEmpty,
		},
		{
			name:    "scheme with blank token",
			header:  "Bearer    ",
			wantErr: ErrTokenEmpty,
		},
		{
			name:    "wrong scheme",
			header:  "Basic dXNlcjpwYXNz",
			wantErr: ErrTokenEmpty,
		},
		{
			name:   "valid token",
			header: "Bearer abc.def.ghi",
			want:   "abc.def.ghi",
		},
		{
			name:   "case insensitive scheme",
			header: "bearer abc.def.ghi",
			want:   "abc.def.ghi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := parseBearer(tt.header)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, goerrors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestBuildErrorResponse(t *testing.T) {
	t.Run("validation errors carry the field map", func(t *testing.T) {
		err := RegisterInput{UserType: UserTypeCorporate}.Validate()
		require.NotNil(t, err)

		status, resp := buildErrorResponse(err, false)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.NotEmpty(t, resp.Validation)
		assert.Contains(t, resp.Validation, "email")
		assert.Contains(t, resp.Validation, "companyName")
		assert.Nil(t, resp.Details)
	})

	t.Run("auth errors map to 401", func(t *testing.T) {
		status, resp := buildErrorResponse(ErrInvalidCredentials, false)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, TextCodeInvalidCredentials, resp.Error)
		assert.Equal(t, "invalid email or password", resp.Message)
	})

	t.Run("conflict errors map to 409", func(t *testing.T) {
		status, resp := buildErrorResponse(ErrEmailAlreadyRegistered, false)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, TextCodeEmailExists, resp.Error)
	})

	t.Run("upstream failures map to 502", func(t *testing.T) {
		status, _ := buildErrorResponse(NewUpstreamError("login", 500, "boom", nil), false)
		assert.Equal(t, http.StatusBadGateway, status)
	})

	t.Run("unclassified errors hide the cause in production", func(t *testing.T) {
		status, resp := buildErrorResponse(stderrors.New("pq: connection refused"), false)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "Internal Server Error", resp.Message)
		assert.Nil(t, resp.Details)
	})

	t.Run("debug exposes metadata and cause", func(t *testing.T) {
		cause := stderrors.New("dial tcp: connection refused")
		status, resp := buildErrorResponse(NewUpstreamError("login", 503, "unavailable", cause), true)
		assert.Equal(t, http.StatusBadGateway, status)
		require.NotNil(t, resp.Details)
		assert.Equal(t, cause.Error(), resp.Details["cause"])
	})
}

func TestStatusFromCategory(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFromCategory(goerrors.CategoryValidation))
	assert.Equal(t, http.StatusBadRequest, statusFromCategory(goerrors.CategoryBadInput))
	assert.Equal(t, http.StatusUnauthorized, statusFromCategory(goerrors.CategoryAuth))
	assert.Equal(t, http.StatusForbidden, statusFromCategory(goerrors.CategoryAuthz))
	assert.Equal(t, http.StatusNotFound, statusFromCategory(goerrors.CategoryNotFound))
	assert.Equal(t, http.StatusConflict, statusFromCategory(goerrors.CategoryConflict))
	assert.Equal(t, http.StatusBadGateway, statusFromCategory(goerrors.CategoryOperation))
	assert.Equal(t, http.StatusInternalServerError, statusFromCategory(goerrors.CategoryInternal))
}
