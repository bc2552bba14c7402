package repository

import "errors"

var (
	// ErrNotFound is returned when an id or ticket number does not resolve.
	ErrNotFound = errors.New("ticket not found")
	// ErrTicketNumberTaken is returned by Create when the ticket number already exists.
	ErrTicketNumberTaken = errors.New("ticket number already exists")
)
