package utils

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FromString converts a pgtype.Text to a domain's primitive string.
// A NULL value is converted to an empty string ("").
func FromString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// FromNullString converts a pgtype.Text to an optional domain field.
// A NULL value is converted to a nil pointer, an empty string is kept.
func FromNullString(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// ToNullString converts a *string to a pgtype.Text.
// A nil pointer is considered invalid (NULL).
func ToNullString(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{
		String: *s,
		Valid:  true,
	}
}

// ToNullTimestamptz converts an optional time bound to a pgtype.Timestamptz.
func ToNullTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// FromNullTimestamptz converts a pgtype.Timestamptz to an optional time.
func FromNullTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
