package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cogniview/internal/model"
)

func TestCheckRole(t *testing.T) {
	assert.NoError(t, CheckRole(model.RoleRecruiter, []string{"recruiter"}))
	assert.NoError(t, CheckRole(model.RoleRecruiter, []string{"admin"}))
	assert.ErrorIs(t, CheckRole(model.RoleRecruiter, []string{"interviewee"}), model.ErrForbidden)
	assert.ErrorIs(t, CheckRole(model.RoleRecruiter, nil), model.ErrForbidden)
	assert.ErrorIs(t, CheckRole(model.RoleRecruiter, []string{"recruiter", "admin"}), model.ErrForbidden)
}
