package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/repository"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	staff := &domain.StaffMember{ID: "s1", Role: domain.StaffRoleAdmin}

	token, exp, err := tm.GenerateToken(staff)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.StaffID)
	assert.Equal(t, domain.StaffRoleAdmin, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	token, _, err := tm.GenerateToken(&domain.StaffMember{ID: "s1"})
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "hunter2"))
	assert.Error(t, ComparePassword(hash, "hunter3"))
}

func newProtectedApp(t *testing.T, tm *TokenManager, staff repository.StaffRepository, roles ...domain.StaffRole) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewAuthMiddleware(tm, staff)
	app.Get("/p", mw.Handle, RequireStaffRole(roles...), func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("no principal")
		}
		return c.SendString(p.Staff.ID)
	})
	return app
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	staff := repository.NewStaticStaffRepository([]domain.StaffMember{
		{ID: "agent", Email: "a@x.de", Role: domain.StaffRoleAgent, Active: true},
		{ID: "gone", Email: "g@x.de", Role: domain.StaffRoleAgent, Active: false},
	})
	app := newProtectedApp(t, tm, staff)

	do := func(header string) (int, string) {
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := do("")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, body)

	status, _ = do("Basic abc")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do("Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, status)

	token, _, err := tm.GenerateToken(&domain.StaffMember{ID: "agent", Role: domain.StaffRoleAgent})
	require.NoError(t, err)
	status, body = do("Bearer " + token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "agent", body)

	disabled, _, err := tm.GenerateToken(&domain.StaffMember{ID: "gone"})
	require.NoError(t, err)
	status, _ = do("Bearer " + disabled)
	assert.Equal(t, http.StatusUnauthorized, status)

	unknown, _, err := tm.GenerateToken(&domain.StaffMember{ID: "nobody"})
	require.NoError(t, err)
	status, _ = do("Bearer " + unknown)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRequireStaffRoleForbidsOtherRoles(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	staff := repository.NewStaticStaffRepository([]domain.StaffMember{
		{ID: "agent", Email: "a@x.de", Role: domain.StaffRoleAgent, Active: true},
	})
	app := newProtectedApp(t, tm, staff, domain.StaffRoleAdmin)

	token, _, err := tm.GenerateToken(&domain.StaffMember{ID: "agent", Role: domain.StaffRoleAgent})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
