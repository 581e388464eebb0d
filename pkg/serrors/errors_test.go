package serrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseError_IsComparesByCode(t *testing.T) {
	base := NewError(CodeNotFound, "product not found", "Errors.NotFound")
	other := NewError(CodeNotFound, "member not found", "")

	wrapped := fmt.Errorf("load: %w", other)
	require.ErrorIs(t, wrapped, base)
	require.NotErrorIs(t, wrapped, NewError(CodeForbidden, "nope", ""))
}

func TestBaseError_CopyOnWrite(t *testing.T) {
	base := NewError(CodeForbidden, "not permitted", "")
	withData := base.WithTemplateData(map[string]string{"action": "delete"})

	assert.Nil(t, base.TemplateData)
	assert.Equal(t, "delete", withData.TemplateData["action"])
	assert.Equal(t, "changed", base.WithMessage("changed").Message)
	assert.Equal(t, "not permitted", base.Message)
}

func TestStatusOf(t *testing.T) {
	cases := map[string]int{
		CodeUnauthenticated:      http.StatusUnauthorized,
		CodeNoActiveOrganization: http.StatusBadRequest,
		CodeNotAMember:           http.StatusBadRequest,
		CodeForbidden:            http.StatusForbidden,
		CodeValidationFailed:     http.StatusBadRequest,
		CodeNotFound:             http.StatusNotFound,
		CodeFileNotSupported:     http.StatusBadRequest,
	}
	for code, status := range cases {
		assert.Equal(t, status, StatusOf(NewError(code, "x", "")), code)
	}
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("boom")))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("boom")))
	assert.Equal(t, http.StatusTeapot, StatusOf(NewError(CodeNotFound, "x", "").WithStatus(http.StatusTeapot)))
}
