package domain

import "time"

// Category is the closed set of problem areas a customer can report.
type Category string

const (
	CategoryHardware Category = "hardware"
	CategorySoftware Category = "software"
	CategoryNetwork  Category = "network"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryHardware, CategorySoftware, CategoryNetwork}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Salutation is the closed set of forms of address for the contact person.
type Salutation string

const (
	SalutationHerr   Salutation = "herr"
	SalutationFrau   Salutation = "frau"
	SalutationDivers Salutation = "divers"
)

// Salutations lists every salutation in display order.
var Salutations = []Salutation{SalutationHerr, SalutationFrau, SalutationDivers}

// Valid reports whether s is a known salutation.
func (s Salutation) Valid() bool {
	for _, known := range Salutations {
		if s == known {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for a display repair/support request.
type Ticket struct {
	ID                       string
	TicketNumber             string
	Category                 Category
	ProblemDetail            string
	HasRestarted             bool
	ShippingOption           string
	AccountNumber            string
	DisplayNumber            string
	DisplayLocation          string
	AlternateReturnAddress   *string
	Email                    string
	AdditionalDeviceAffected bool
	DifferentShippingAddress bool
	ShippingAddress          *string
	Salutation               Salutation
	ContactPerson            string
	Status                   TicketStatus
	CreatedAt                time.Time
	UpdatedAt                time.Time

	// History is ordered oldest-first when loaded from a repository.
	History []StatusHistoryEntry
}

// LatestEntry returns the most recent history entry, if any.
func (t *Ticket) LatestEntry() (StatusHistoryEntry, bool) {
	if t == nil || len(t.History) == 0 {
		return StatusHistoryEntry{}, false
	}
	return t.History[len(t.History)-1], true
}
