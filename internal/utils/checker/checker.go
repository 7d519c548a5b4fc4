package checker

import (
	"fmt"

	"cogniview/internal/model"
)

func CheckRole(targetRole model.Role, roleIds []string) error {
	if len(roleIds) != 1 {
		return fmt.Errorf("%w: invalid role id", model.ErrForbidden)
	}

	if model.Role(roleIds[0]) != targetRole && model.Role(roleIds[0]) != model.RoleAdmin {
		return fmt.Errorf("%w: requires role %s", model.ErrForbidden, targetRole)
	}

	return nil
}
