package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/display-support/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	require.Len(t, c.Categories(), 3)
	assert.Len(t, c.Problems(domain.CategoryHardware), 15)
	assert.Len(t, c.Problems(domain.CategorySoftware), 2)
	assert.Len(t, c.Problems(domain.CategoryNetwork), 2)

	assert.True(t, c.HasProblem(domain.CategoryHardware, "bootloop"))
	assert.True(t, c.HasProblem(domain.CategoryHardware, "24v-conversion"))
	assert.False(t, c.HasProblem(domain.CategorySoftware, "bootloop"))
	assert.False(t, c.HasProblem("printer", "bootloop"))

	assert.True(t, c.HasShippingOption("avantor-box"))
	assert.False(t, c.HasShippingOption("drone"))
	assert.Len(t, c.Salutations(), 3)

	assert.Equal(t, "Offen", c.StatusLabel(domain.TicketStatusOpen))
	assert.Equal(t, "mystery", c.StatusLabel("mystery"))
}

func TestCatalogAccessorsReturnCopies(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	problems := c.Problems(domain.CategoryNetwork)
	problems[0].ID = "tampered"
	assert.True(t, c.HasProblem(domain.CategoryNetwork, "router-defect"))

	cats := c.Categories()
	cats[0].Problems[0].ID = "tampered"
	assert.Equal(t, "led-defect", c.Problems(domain.CategoryHardware)[0].ID)
}

func TestParseRejectsIncompleteCatalog(t *testing.T) {
	_, err := Parse([]byte(`
categories:
  - id: hardware
    label: HW
    problems: [{id: a, label: A}]
shipping_options: [{id: x, label: X}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing category")

	_, err = Parse([]byte(`
categories:
  - id: toaster
    problems: [{id: a}]
`))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, defaultCatalog, 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.HasShippingOption("complete-swap"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
