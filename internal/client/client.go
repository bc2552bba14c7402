// Package client is the HTTP client supportctl uses to talk to the API. Error
// envelopes are decoded back into *errorutil.DomainError so callers can branch
// on the same codes the server uses.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/display-support/internal/api/dto"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/tracking"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

const defaultTimeout = 10 * time.Second

// Client calls the display-support API.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
}

// New builds a client; token may be empty for public endpoints.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, timeout: timeout}
}

// WithToken returns a copy using token for staff endpoints.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// CreateTicket submits the intake payload. A non-empty idempotencyKey makes
// retries of the same submission return the ticket created first.
func (c *Client) CreateTicket(ctx context.Context, idempotencyKey string, req dto.CreateTicketRequest) (*dto.TicketResponse, error) {
	var out dto.TicketResponse
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	if err := c.do(ctx, fiber.MethodPost, "/api/tickets", req, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Track looks up the public projection for number.
func (c *Client) Track(ctx context.Context, number string) (*tracking.Projection, error) {
	var out tracking.Projection
	if err := c.do(ctx, fiber.MethodPost, "/api/tickets/track", dto.TrackTicketRequest{TicketNumber: number}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges staff credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*dto.StaffLoginResponse, error) {
	var out dto.StaffLoginResponse
	if err := c.do(ctx, fiber.MethodPost, "/auth/staff/login", dto.StaffLoginRequest{Email: email, Password: password}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTickets returns every ticket matching the optional filters, newest first.
func (c *Client) ListTickets(ctx context.Context, statuses []domain.TicketStatus, search string) ([]dto.TicketSummary, error) {
	query := url.Values{}
	if len(statuses) > 0 {
		parts := make([]string, len(statuses))
		for i, s := range statuses {
			parts[i] = string(s)
		}
		query.Set("status", strings.Join(parts, ","))
	}
	if search = strings.TrimSpace(search); search != "" {
		query.Set("search", search)
	}
	path := "/api/staff/tickets"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out []dto.TicketSummary
	if err := c.do(ctx, fiber.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTicket returns the staff detail view.
func (c *Client) GetTicket(ctx context.Context, id string) (*dto.TicketDetailResponse, error) {
	var out dto.TicketDetailResponse
	if err := c.do(ctx, fiber.MethodGet, "/api/staff/tickets/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus applies a status transition.
func (c *Client) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, comment *string) (*dto.StatusChangeResponse, error) {
	var out dto.StatusChangeResponse
	body := dto.UpdateStatusRequest{Status: status, Comment: comment}
	if err := c.do(ctx, fiber.MethodPatch, "/api/staff/tickets/"+url.PathEscape(id)+"/status", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewTransientFailure("request cancelled", err)
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return apperrors.NewTransientFailure("invalid api url", err)
	}
	agent.Timeout(timeout)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	for k, v := range headers {
		agent.Set(k, v)
	}
	if body != nil {
		agent.JSON(body)
	}

	status, data, errs := agent.Bytes()
	if len(errs) > 0 {
		return apperrors.NewTransientFailure("api unreachable", errs[0])
	}
	if status < 200 || status >= 300 {
		return decodeError(status, data)
	}
	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("decode response: %w", err))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("decode response data: %w", err))
	}
	return nil
}

// decodeError rebuilds the server's DomainError from the error envelope.
func decodeError(status int, data []byte) error {
	var envelope dto.ErrorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
		return apperrors.NewDomainError(codeForStatus(status), http.StatusText(status), status, nil)
	}
	return apperrors.NewDomainError(envelope.Error.Code, envelope.Error.Message, status, envelope.Error.Details)
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return apperrors.CodeNotFound
	case status == http.StatusConflict:
		return apperrors.CodeConflict
	case status == http.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case status == http.StatusForbidden:
		return apperrors.CodeForbidden
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return apperrors.CodeTransientFailure
	case status >= 400 && status < 500:
		return apperrors.CodeInvalidInput
	default:
		return apperrors.CodeInternal
	}
}
