package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sort"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/spec-kit/display-support/internal/domain"
)

var (
	ticketsBucket       = []byte("tickets")
	ticketNumbersBucket = []byte("ticket_numbers")
	historyBucket       = []byte("ticket_status_history")
)

// BoltTicketRepository stores tickets in an embedded BoltDB file.
//
// Layout: tickets maps id to the JSON ticket record, ticket_numbers maps the
// ticket number to its id, and ticket_status_history holds one nested bucket
// per ticket keyed by a big-endian sequence so cursor order is insertion order.
// Every write runs inside a single bolt.Update transaction.
type BoltTicketRepository struct {
	db    *bolt.DB
	clock func() time.Time
}

var (
	_ TicketRepository        = (*BoltTicketRepository)(nil)
	_ TicketHistoryRepository = (*BoltTicketRepository)(nil)
)

// NewBoltTicketRepository ensures the buckets exist. A nil clock uses time.Now.
func NewBoltTicketRepository(db *bolt.DB, clock func() time.Time) (*BoltTicketRepository, error) {
	if clock == nil {
		clock = time.Now
	}
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{ticketsBucket, ticketNumbersBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltTicketRepository{db: db, clock: clock}, nil
}

type ticketRecord struct {
	ID                       string              `json:"id"`
	Seq                      uint64              `json:"seq"`
	TicketNumber             string              `json:"ticket_number"`
	Category                 domain.Category     `json:"category"`
	ProblemDetail            string              `json:"problem_detail"`
	HasRestarted             bool                `json:"has_restarted"`
	ShippingOption           string              `json:"shipping_option"`
	AccountNumber            string              `json:"account_number"`
	DisplayNumber            string              `json:"display_number"`
	DisplayLocation          string              `json:"display_location"`
	AlternateReturnAddress   *string             `json:"alternate_return_address,omitempty"`
	Email                    string              `json:"email"`
	AdditionalDeviceAffected bool                `json:"additional_device_affected"`
	DifferentShippingAddress bool                `json:"different_shipping_address"`
	ShippingAddress          *string             `json:"shipping_address,omitempty"`
	Salutation               domain.Salutation   `json:"salutation"`
	ContactPerson            string              `json:"contact_person"`
	Status                   domain.TicketStatus `json:"status"`
	CreatedAt                time.Time           `json:"created_at"`
	UpdatedAt                time.Time           `json:"updated_at"`
}

type historyRecord struct {
	ID          string               `json:"id"`
	TicketID    string               `json:"ticket_id"`
	Seq         int64                `json:"seq"`
	FromStatus  *domain.TicketStatus `json:"from_status,omitempty"`
	ToStatus    domain.TicketStatus  `json:"to_status"`
	Comment     *string              `json:"comment,omitempty"`
	ChangedByID *string              `json:"changed_by,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func (r *BoltTicketRepository) now() time.Time {
	// UTC drops the monotonic reading so values compare equal after a JSON round trip.
	return r.clock().UTC()
}

func (r *BoltTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		numbers := tx.Bucket(ticketNumbersBucket)
		if numbers.Get([]byte(ticket.TicketNumber)) != nil {
			return ErrTicketNumberTaken
		}
		tickets := tx.Bucket(ticketsBucket)
		seq, err := tickets.NextSequence()
		if err != nil {
			return err
		}

		now := r.now()
		rec := toTicketRecord(ticket)
		rec.ID = uuid.NewString()
		rec.Seq = seq
		rec.CreatedAt = now
		rec.UpdatedAt = now

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tickets.Put([]byte(rec.ID), data); err != nil {
			return err
		}
		if err := numbers.Put([]byte(rec.TicketNumber), []byte(rec.ID)); err != nil {
			return err
		}

		ticket.ID = rec.ID
		ticket.CreatedAt = now
		ticket.UpdatedAt = now
		return nil
	})
}

func (r *BoltTicketRepository) ExistsByTicketNumber(_ context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(ticketNumbersBucket).Get([]byte(number)) != nil
		return nil
	})
	return exists, err
}

func (r *BoltTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		ticket, err = loadTicket(tx, id)
		return err
	})
	return ticket, err
}

func (r *BoltTicketRepository) GetByTicketNumber(_ context.Context, number string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := r.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(ticketNumbersBucket).Get([]byte(number))
		if id == nil {
			return ErrNotFound
		}
		var err error
		ticket, err = loadTicket(tx, string(id))
		return err
	})
	return ticket, err
}

func (r *BoltTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	var records []ticketRecord
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(ticketsBucket).ForEach(func(_, v []byte) error {
			var rec ticketRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if matchesFilter(rec, filter) {
				records = append(records, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].Seq > records[j].Seq
	})

	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start > len(records) {
		start = len(records)
	}
	end := len(records)
	if filter.Limit > 0 && filter.Limit < end-start {
		end = start + filter.Limit
	}

	result := make([]domain.Ticket, 0, end-start)
	for _, rec := range records[start:end] {
		result = append(result, rec.toDomain())
	}
	return result, nil
}

func (r *BoltTicketRepository) ApplyTransition(_ context.Context, ticketID string, change StatusChange) (*domain.Ticket, *domain.StatusHistoryEntry, error) {
	var (
		ticket *domain.Ticket
		entry  *domain.StatusHistoryEntry
	)
	err := r.db.Update(func(tx *bolt.Tx) error {
		tickets := tx.Bucket(ticketsBucket)
		raw := tickets.Get([]byte(ticketID))
		if raw == nil {
			return ErrNotFound
		}
		var rec ticketRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}

		root := tx.Bucket(historyBucket)
		seq, err := root.NextSequence()
		if err != nil {
			return err
		}
		perTicket, err := root.CreateBucketIfNotExists([]byte(ticketID))
		if err != nil {
			return err
		}

		now := r.now()
		from := rec.Status
		hrec := historyRecord{
			ID:          uuid.NewString(),
			TicketID:    ticketID,
			Seq:         int64(seq),
			FromStatus:  &from,
			ToStatus:    change.ToStatus,
			Comment:     change.Comment,
			ChangedByID: change.ChangedByID,
			CreatedAt:   now,
		}
		hdata, err := json.Marshal(hrec)
		if err != nil {
			return err
		}
		if err := perTicket.Put(seqKey(seq), hdata); err != nil {
			return err
		}

		rec.Status = change.ToStatus
		rec.UpdatedAt = now
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tickets.Put([]byte(ticketID), data); err != nil {
			return err
		}

		e := hrec.toDomain()
		entry = &e
		ticket, err = loadTicket(tx, ticketID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return ticket, entry, nil
}

// ListByTicket returns entries oldest-first.
func (r *BoltTicketRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.StatusHistoryEntry, error) {
	var entries []domain.StatusHistoryEntry
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		entries, err = loadHistory(tx, ticketID)
		return err
	})
	return entries, err
}

func loadTicket(tx *bolt.Tx, id string) (*domain.Ticket, error) {
	raw := tx.Bucket(ticketsBucket).Get([]byte(id))
	if raw == nil {
		return nil, ErrNotFound
	}
	var rec ticketRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	ticket := rec.toDomain()
	history, err := loadHistory(tx, id)
	if err != nil {
		return nil, err
	}
	ticket.History = history
	return &ticket, nil
}

func loadHistory(tx *bolt.Tx, ticketID string) ([]domain.StatusHistoryEntry, error) {
	entries := []domain.StatusHistoryEntry{}
	perTicket := tx.Bucket(historyBucket).Bucket([]byte(ticketID))
	if perTicket == nil {
		return entries, nil
	}
	// Keys are big-endian sequence numbers, so cursor order is insertion order.
	err := perTicket.ForEach(func(_, v []byte) error {
		var rec historyRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		entries = append(entries, rec.toDomain())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func matchesFilter(rec ticketRecord, filter TicketFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if rec.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term == "" {
			return true
		}
		for _, field := range []string{rec.TicketNumber, rec.ContactPerson, rec.DisplayNumber} {
			if strings.Contains(strings.ToLower(field), term) {
				return true
			}
		}
		return false
	}
	return true
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func toTicketRecord(t *domain.Ticket) ticketRecord {
	return ticketRecord{
		ID:                       t.ID,
		TicketNumber:             t.TicketNumber,
		Category:                 t.Category,
		ProblemDetail:            t.ProblemDetail,
		HasRestarted:             t.HasRestarted,
		ShippingOption:           t.ShippingOption,
		AccountNumber:            t.AccountNumber,
		DisplayNumber:            t.DisplayNumber,
		DisplayLocation:          t.DisplayLocation,
		AlternateReturnAddress:   t.AlternateReturnAddress,
		Email:                    t.Email,
		AdditionalDeviceAffected: t.AdditionalDeviceAffected,
		DifferentShippingAddress: t.DifferentShippingAddress,
		ShippingAddress:          t.ShippingAddress,
		Salutation:               t.Salutation,
		ContactPerson:            t.ContactPerson,
		Status:                   t.Status,
		CreatedAt:                t.CreatedAt,
		UpdatedAt:                t.UpdatedAt,
	}
}

func (rec ticketRecord) toDomain() domain.Ticket {
	return domain.Ticket{
		ID:                       rec.ID,
		TicketNumber:             rec.TicketNumber,
		Category:                 rec.Category,
		ProblemDetail:            rec.ProblemDetail,
		HasRestarted:             rec.HasRestarted,
		ShippingOption:           rec.ShippingOption,
		AccountNumber:            rec.AccountNumber,
		DisplayNumber:            rec.DisplayNumber,
		DisplayLocation:          rec.DisplayLocation,
		AlternateReturnAddress:   rec.AlternateReturnAddress,
		Email:                    rec.Email,
		AdditionalDeviceAffected: rec.AdditionalDeviceAffected,
		DifferentShippingAddress: rec.DifferentShippingAddress,
		ShippingAddress:          rec.ShippingAddress,
		Salutation:               rec.Salutation,
		ContactPerson:            rec.ContactPerson,
		Status:                   rec.Status,
		CreatedAt:                rec.CreatedAt,
		UpdatedAt:                rec.UpdatedAt,
	}
}

func (rec historyRecord) toDomain() domain.StatusHistoryEntry {
	return domain.StatusHistoryEntry{
		ID:          rec.ID,
		TicketID:    rec.TicketID,
		Seq:         rec.Seq,
		FromStatus:  rec.FromStatus,
		ToStatus:    rec.ToStatus,
		Comment:     rec.Comment,
		ChangedByID: rec.ChangedByID,
		CreatedAt:   rec.CreatedAt,
	}
}
