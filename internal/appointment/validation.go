package appointment

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 240

	maxCompanyLength     = 200
	maxDescriptionLength = 1000
	maxAddressLength     = 500

	sameDayLeadMinutes = 15
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValidUUID reports whether s has the canonical 8-4-4-4-12 hex shape.
func IsValidUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

func parseID(s, msg string) (uuid.UUID, error) {
	if !IsValidUUID(s) {
		return uuid.Nil, invalid(msg)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, invalid(msg)
	}
	return id, nil
}

func parseOptionalID(s, msg string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseID(s, msg)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// SanitizedText is free text that has been trimmed and stripped of angle
// brackets. Only NewSanitizedText produces non-empty values.
type SanitizedText struct {
	value string
}

func NewSanitizedText(raw string) SanitizedText {
	cleaned := strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(raw))
	return SanitizedText{value: cleaned}
}

func (t SanitizedText) String() string { return t.value }

// Ptr returns nil for empty text so optional columns stay NULL.
func (t SanitizedText) Ptr() *string {
	if t.value == "" {
		return nil
	}
	v := t.value
	return &v
}

func checkLength(value string, max int, field string) error {
	if utf8.RuneCountInString(value) > max {
		return invalid(fmt.Sprintf("%s exceeds maximum length of %d characters", field, max))
	}
	return nil
}

// ValidateCreatePayload checks presence, identifier shape, text bounds and
// duration, in that order, and returns the sanitized input.
func ValidateCreatePayload(req CreateRequest, loc *time.Location) (CreateInput, error) {
	var in CreateInput

	switch {
	case req.StartTime == "":
		return in, invalid("Date is required")
	case req.ConsultationTypeID == "":
		return in, invalid("Consultation type is required")
	case req.ModalityID == "":
		return in, invalid("Modality is required")
	}

	var err error
	if in.ConsultationTypeID, err = parseID(req.ConsultationTypeID, "Invalid consultation type ID format"); err != nil {
		return in, err
	}
	if in.ModalityID, err = parseID(req.ModalityID, "Invalid modality ID format"); err != nil {
		return in, err
	}
	if in.EmployeeID, err = parseOptionalID(req.EmployeeID, "Invalid employee ID format"); err != nil {
		return in, err
	}
	if in.CustomerID, err = parseOptionalID(req.CustomerID, "Invalid user ID format"); err != nil {
		return in, err
	}

	if err := checkLength(req.Company, maxCompanyLength, "Company name"); err != nil {
		return in, err
	}
	if err := checkLength(req.Description, maxDescriptionLength, "Description"); err != nil {
		return in, err
	}
	if err := checkLength(req.Address, maxAddressLength, "Address"); err != nil {
		return in, err
	}

	if in.DurationMinutes, err = ValidateDuration(req.DurationMinutes); err != nil {
		return in, err
	}

	if in.StartTime, err = ParseStartTime(req.StartTime, loc); err != nil {
		return in, err
	}

	in.Company = NewSanitizedText(req.Company)
	in.Description = NewSanitizedText(req.Description)
	in.Address = NewSanitizedText(req.Address)
	return in, nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseStartTime accepts RFC 3339 timestamps, or zone-less local timestamps
// which are read in loc.
func ParseStartTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("Invalid date format")
}

// ValidateAppointmentWindow rejects past calendar days and same-day starts
// that are not strictly more than 15 minutes ahead of now. The comparison is
// at minute resolution in loc.
func ValidateAppointmentWindow(start, now time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	start, now = start.In(loc), now.In(loc)

	sy, sm, sd := start.Date()
	ny, nm, nd := now.Date()
	startDay := time.Date(sy, sm, sd, 0, 0, 0, 0, loc)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, loc)

	if startDay.Before(today) {
		return invalid("Appointment date cannot be in the past")
	}
	if startDay.Equal(today) {
		startMinute := start.Hour()*60 + start.Minute()
		nowMinute := now.Hour()*60 + now.Minute()
		if startMinute <= nowMinute+sameDayLeadMinutes {
			return invalid("Appointment time must be at least 15 minutes in the future")
		}
	}
	return nil
}

var errDurationRange = invalid("Duration must be between 15 and 240 minutes")

// ValidateDuration returns the booked minutes. A missing value is the
// default; anything that is not a whole number in range is rejected.
func ValidateDuration(v any) (int, error) {
	var minutes float64

	switch d := v.(type) {
	case nil:
		return DefaultDurationMinutes, nil
	case int:
		minutes = float64(d)
	case int64:
		minutes = float64(d)
	case float64:
		minutes = d
	case json.Number:
		f, err := d.Float64()
		if err != nil {
			return 0, errDurationRange
		}
		minutes = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
		if err != nil {
			return 0, errDurationRange
		}
		minutes = f
	default:
		return 0, errDurationRange
	}

	if math.IsNaN(minutes) || minutes != math.Trunc(minutes) {
		return 0, errDurationRange
	}
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return 0, errDurationRange
	}
	return int(minutes), nil
}

// ValidateStatusTransitionRequest accepts only the canonical status names.
func ValidateStatusTransitionRequest(name string) (Status, error) {
	s := Status(name)
	if !s.Valid() {
		return "", invalid("Invalid status value")
	}
	return s, nil
}
