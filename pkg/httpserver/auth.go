package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	XKaytuUserIDHeader   = "X-Kaytu-UserId"
	XKaytuUserRoleHeader = "X-Kaytu-UserRole"
)

type Role string

const (
	ViewerRole   Role = "viewer"
	EditorRole   Role = "editor"
	AdminRole    Role = "admin"
	InternalRole Role = "internal"
)

func AuthorizeHandler(h echo.HandlerFunc, minRole Role) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := RequireMinRole(ctx, minRole); err != nil {
			return err
		}

		return h(ctx)
	}
}

func RequireMinRole(ctx echo.Context, minRole Role) error {
	if !hasAccess(GetUserRole(ctx), minRole) {
		return echo.NewHTTPError(http.StatusForbidden, "missing required permission")
	}

	return nil
}

// GetUserRole returns the role set by the gateway, or an empty role when the
// header is missing.
func GetUserRole(ctx echo.Context) Role {
	role := ctx.Request().Header.Get(XKaytuUserRoleHeader)
	return Role(strings.ToLower(strings.TrimSpace(role)))
}

func GetUserID(ctx echo.Context) string {
	return ctx.Request().Header.Get(XKaytuUserIDHeader)
}

func roleToPriority(role Role) int {
	switch role {
	case ViewerRole:
		return 0
	case EditorRole:
		return 1
	case AdminRole:
		return 2
	case InternalRole:
		return 99
	default:
		return -1
	}
}

func hasAccess(currRole, minRole Role) bool {
	return roleToPriority(currRole) >= roleToPriority(minRole)
}
