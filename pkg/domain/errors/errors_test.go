package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(CodeOrgNotFound, "sf", "org not connected", nil)
	assert.Equal(t, "[sf:ORG_NOT_FOUND] org not connected", plain.Error())

	wrapped := New(CodeCommandFailed, "sf", "sf exited with status 1", stderrors.New("boom"))
	assert.Equal(t, "[sf:COMMAND_FAILED] sf exited with status 1: boom", wrapped.Error())
}

func TestCodeLookupThroughWrapping(t *testing.T) {
	cause := stderrors.New("no such file")
	err := fmt.Errorf("resolve project: %w", New(CodeProjectInvalid, "sf", "sfdx-project.json not found", cause))

	assert.Equal(t, CodeProjectInvalid, CodeOf(err))
	assert.True(t, HasCode(err, CodeProjectInvalid))
	assert.False(t, HasCode(err, CodeOrgNotAllowed))
	assert.True(t, stderrors.Is(err, cause))

	var domainErr *Error
	assert.True(t, As(err, &domainErr))
	assert.Equal(t, "sf", domainErr.Domain)
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
	assert.False(t, HasCode(nil, CodeInternalError))
}
