package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/display-support/internal/api/dto"
	"github.com/spec-kit/display-support/internal/domain"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

func newStubServer(t *testing.T) *httptest.Server {
	t.Helper()
	app := fiber.New()
	app.Post("/api/tickets", func(c *fiber.Ctx) error {
		var req dto.CreateTicketRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).SendString("bad")
		}
		if req.Email == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": fiber.Map{
				"code":    apperrors.CodeInvalidInput,
				"message": "ticket payload incomplete",
				"details": fiber.Map{"email": "required"},
			}})
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketResponse{
			ID:            "t1",
			TicketNumber:  "SUP-20240315-1234",
			Status:        domain.TicketStatusOpen,
			ContactPerson: c.Get("Idempotency-Key"),
		}})
	})
	app.Get("/api/staff/tickets", func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "Bearer tok" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": fiber.Map{
				"code": apperrors.CodeUnauthorized, "message": "missing authorization header",
			}})
		}
		return c.JSON(fiber.Map{"data": []dto.TicketSummary{{ID: "t1", Status: domain.TicketStatus(c.Query("status"))}}})
	})
	app.Patch("/api/staff/tickets/:id/status", func(c *fiber.Ctx) error {
		return c.Status(http.StatusBadGateway).SendString("upstream down")
	})
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateTicketDecodesData(t *testing.T) {
	srv := newStubServer(t)
	c := New(srv.URL, "", time.Second)

	ticket, err := c.CreateTicket(context.Background(), "key-1", dto.CreateTicketRequest{Email: "a@b.de"})
	require.NoError(t, err)
	assert.Equal(t, "SUP-20240315-1234", ticket.TicketNumber)
	assert.Equal(t, "key-1", ticket.ContactPerson)
}

func TestErrorEnvelopeBecomesDomainError(t *testing.T) {
	srv := newStubServer(t)
	c := New(srv.URL, "", time.Second)

	_, err := c.CreateTicket(context.Background(), "", dto.CreateTicketRequest{})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeInvalidInput, de.Code)
	assert.Equal(t, http.StatusBadRequest, de.HTTPStatus)
	assert.Equal(t, "required", de.Details["email"])

	_, err = c.ListTickets(context.Background(), nil, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = c.UpdateStatus(context.Background(), "t1", domain.TicketStatusCompleted, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTransientFailure))
}

func TestListTicketsSendsTokenAndFilters(t *testing.T) {
	srv := newStubServer(t)
	c := New(srv.URL, "", time.Second).WithToken("tok")

	tickets, err := c.ListTickets(context.Background(), []domain.TicketStatus{domain.TicketStatusCompleted}, "")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, domain.TicketStatusCompleted, tickets[0].Status)
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := newStubServer(t)
	url := srv.URL
	srv.Close()

	_, err := New(url, "", 200*time.Millisecond).Track(context.Background(), "SUP-20240315-1234")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTransientFailure))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(url, "", time.Second).Track(ctx, "SUP-20240315-1234")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTransientFailure))
}
