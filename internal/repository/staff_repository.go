package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/display-support/internal/domain"
)

// ErrStaffNotFound is returned when no staff account matches.
var ErrStaffNotFound = errors.New("staff member not found")

// StaffRepository resolves staff accounts.
type StaffRepository interface {
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error)
	List(ctx context.Context) ([]domain.StaffMember, error)
}

type staffFile struct {
	Staff []staffEntry `yaml:"staff"`
}

type staffEntry struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Email        string           `yaml:"email"`
	PasswordHash string           `yaml:"password_hash"`
	Role         domain.StaffRole `yaml:"role"`
	Active       *bool            `yaml:"active"`
}

type staticStaffRepository struct {
	members []domain.StaffMember
}

// NewStaticStaffRepository serves a fixed set of accounts.
func NewStaticStaffRepository(members []domain.StaffMember) StaffRepository {
	return &staticStaffRepository{members: append([]domain.StaffMember(nil), members...)}
}

// LoadStaffFile reads staff accounts from a YAML file. A missing file yields
// an empty directory so the service still starts; nobody can log in.
func LoadStaffFile(path string) (StaffRepository, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewStaticStaffRepository(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read staff file %s: %w", path, err)
	}
	return ParseStaff(data)
}

// ParseStaff decodes the staff YAML document.
func ParseStaff(data []byte) (StaffRepository, error) {
	var doc staffFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse staff file: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Staff))
	members := make([]domain.StaffMember, 0, len(doc.Staff))
	for i, entry := range doc.Staff {
		if entry.ID == "" || entry.Email == "" || entry.PasswordHash == "" {
			return nil, fmt.Errorf("staff entry %d: id, email and password_hash are required", i)
		}
		email := strings.ToLower(strings.TrimSpace(entry.Email))
		if _, dup := seen[email]; dup {
			return nil, fmt.Errorf("staff entry %d: duplicate email %s", i, email)
		}
		seen[email] = struct{}{}

		role := entry.Role
		if role == "" {
			role = domain.StaffRoleAgent
		}
		if role != domain.StaffRoleAgent && role != domain.StaffRoleAdmin {
			return nil, fmt.Errorf("staff entry %d: unknown role %q", i, role)
		}
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}
		members = append(members, domain.StaffMember{
			ID:           entry.ID,
			Name:         entry.Name,
			Email:        email,
			PasswordHash: entry.PasswordHash,
			Role:         role,
			Active:       active,
		})
	}
	return NewStaticStaffRepository(members), nil
}

func (r *staticStaffRepository) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	for _, m := range r.members {
		if m.ID == id {
			member := m
			return &member, nil
		}
	}
	return nil, ErrStaffNotFound
}

func (r *staticStaffRepository) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, m := range r.members {
		if m.Email == email {
			member := m
			return &member, nil
		}
	}
	return nil, ErrStaffNotFound
}

func (r *staticStaffRepository) List(_ context.Context) ([]domain.StaffMember, error) {
	return append([]domain.StaffMember(nil), r.members...), nil
}
