package aiforms

import (
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/labstack/echo/v4"
)

// FormPermissionMiddleware управлять формой и читать ответы может только автор формы или суперпользователь
func (s *Services) FormPermissionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		fc, ok := c.(FormContext)
		if !ok || !canManageForm(fc.User, &fc.Form) {
			return EErrorDefined(c, apierrors.ErrFormForbidden)
		}
		return next(c)
	}
}

func canManageForm(user *dao.User, form *dao.Form) bool {
	if user == nil || form == nil || !user.IsActive {
		return false
	}
	return user.IsSuperuser || form.CreatedById == user.ID
}
