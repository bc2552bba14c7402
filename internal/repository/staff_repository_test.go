package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/display-support/internal/domain"
)

func TestParseStaff(t *testing.T) {
	repo, err := ParseStaff([]byte(`
staff:
  - id: s1
    name: Anna
    email: Anna@Example.com
    password_hash: hash-a
    role: ADMIN
  - id: s2
    name: Ben
    email: ben@example.com
    password_hash: hash-b
    active: false
`))
	require.NoError(t, err)
	ctx := context.Background()

	anna, err := repo.GetByEmail(ctx, " anna@example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "s1", anna.ID)
	assert.Equal(t, domain.StaffRoleAdmin, anna.Role)
	assert.True(t, anna.Active)

	ben, err := repo.GetByID(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, domain.StaffRoleAgent, ben.Role)
	assert.False(t, ben.Active)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrStaffNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestParseStaffRejectsInvalid(t *testing.T) {
	_, err := ParseStaff([]byte(`staff: [{id: s1, email: a@b.de}]`))
	assert.Error(t, err)

	_, err = ParseStaff([]byte(`
staff:
  - {id: s1, email: a@b.de, password_hash: x}
  - {id: s2, email: A@b.de, password_hash: y}
`))
	assert.ErrorContains(t, err, "duplicate email")

	_, err = ParseStaff([]byte(`staff: [{id: s1, email: a@b.de, password_hash: x, role: ROOT}]`))
	assert.ErrorContains(t, err, "unknown role")
}

func TestLoadStaffFileMissing(t *testing.T) {
	repo, err := LoadStaffFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
