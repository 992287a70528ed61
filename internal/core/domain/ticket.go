package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// TicketStatus represents the possible states of a synced ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "Open"
	StatusPending    TicketStatus = "Pending"
	StatusInProgress TicketStatus = "In Progress"
	StatusResolved   TicketStatus = "Resolved"
	StatusClosed     TicketStatus = "Closed"
)

// IsValid reports whether the status is one of the known ticket states.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusPending, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// IsClosed reports whether the ticket no longer needs work.
func (s TicketStatus) IsClosed() bool {
	return s == StatusClosed || s == StatusResolved
}

func (s TicketStatus) String() string {
	return string(s)
}

// TicketID is the identifier assigned by the upstream ticketing system.
// It is kept as text so numeric and string identifiers compare the same way.
type TicketID string

func (id TicketID) String() string {
	return string(id)
}

// UnmarshalJSON accepts both JSON numbers and JSON strings.
func (id *TicketID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TicketID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = TicketID(n.String())
	return nil
}

// TicketIDFromInt builds a TicketID from a numeric identifier.
func TicketIDFromInt(n int64) TicketID {
	return TicketID(strconv.FormatInt(n, 10))
}

// Technician is the agent a ticket is currently assigned to.
type Technician struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Ticket is a read-only view of a ticket synced from the ticketing system.
// Optional fields are pointers; a nil pointer reads as an empty string.
type Ticket struct {
	FreshserviceTicketID TicketID     `json:"freshserviceTicketId"`
	Subject              string       `json:"subject"`
	RequesterName        *string      `json:"requesterName"`
	TicketCategory       *string      `json:"ticketCategory"`
	Status               TicketStatus `json:"status"`
	IsSelfPicked         bool         `json:"isSelfPicked"`
	AssignedBy           *string      `json:"assignedBy"`
	AssignedTech         *Technician  `json:"assignedTech,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
	ResolvedAt           *time.Time   `json:"resolvedAt,omitempty"`
}

// Requester returns the requester name or "" when absent.
func (t Ticket) Requester() string {
	return deref(t.RequesterName)
}

// Category returns the ticket category or "" when absent.
func (t Ticket) Category() string {
	return deref(t.TicketCategory)
}

// HasCategory reports whether the ticket carries a category at all.
func (t Ticket) HasCategory() bool {
	return t.TicketCategory != nil
}

// Assigner returns the name of whoever assigned the ticket, or "".
func (t Ticket) Assigner() string {
	return deref(t.AssignedBy)
}

// IsSelfPickedBy applies the self-picked convention: the flag is set, or the
// ticket was "assigned" by the technician being evaluated.
func (t Ticket) IsSelfPickedBy(referenceName string) bool {
	if t.IsSelfPicked {
		return true
	}
	assigner := t.Assigner()
	return assigner != "" && assigner == referenceName
}

// TechnicianName returns the nested assignee name, or "" when unassigned.
func (t Ticket) TechnicianName() string {
	if t.AssignedTech == nil {
		return ""
	}
	return t.AssignedTech.Name
}

// TicketList decodes leniently: anything other than a JSON array of tickets
// decodes to an empty list instead of failing the whole request. Elements
// that are not valid tickets are skipped.
type TicketList []Ticket

func (l *TicketList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = TicketList{}
		return nil
	}

	tickets := make(TicketList, 0, len(raw))
	for _, element := range raw {
		var ticket Ticket
		if err := json.Unmarshal(element, &ticket); err != nil {
			continue
		}
		tickets = append(tickets, ticket)
	}
	*l = tickets
	return nil
}

// StringList decodes leniently: a value that is not an array of strings
// decodes to an empty list.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		*l = nil
		return nil
	}
	*l = values
	return nil
}

// StringPtr is a convenience for building optional ticket fields.
func StringPtr(s string) *string {
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
