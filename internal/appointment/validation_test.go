package appointment

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return v.Message
}

func TestValidateDuration(t *testing.T) {
	cases := []struct {
		name  string
		in    any
		want  int
		valid bool
	}{
		{"missing defaults", nil, 60, true},
		{"below minimum", 14, 0, false},
		{"minimum", 15, 15, true},
		{"maximum", 240, 240, true},
		{"above maximum", 241, 0, false},
		{"json float", float64(90), 90, true},
		{"json number", json.Number("45"), 45, true},
		{"numeric string", "120", 120, true},
		{"padded string", " 30 ", 30, true},
		{"fractional", 60.5, 0, false},
		{"fractional string", "60.5", 0, false},
		{"text", "an hour", 0, false},
		{"bool", true, 0, false},
		{"object", map[string]any{"m": 60}, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateDuration(tc.in)
			if !tc.valid {
				if msg := validationMessage(t, err); msg != "Duration must be between 15 and 240 minutes" {
					t.Fatalf("unexpected message %q", msg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestValidateAppointmentWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 30, 0, time.UTC)

	cases := []struct {
		name  string
		start time.Time
		want  string
	}{
		{"yesterday", now.Add(-24 * time.Hour), "Appointment date cannot be in the past"},
		{"earlier today", now.Add(-time.Hour), "Appointment time must be at least 15 minutes in the future"},
		{"now plus 14", now.Add(14 * time.Minute), "Appointment time must be at least 15 minutes in the future"},
		{"now plus 15", now.Add(15 * time.Minute), "Appointment time must be at least 15 minutes in the future"},
		{"now plus 16", now.Add(16 * time.Minute), ""},
		{"tomorrow early", time.Date(2025, 3, 11, 0, 5, 0, 0, time.UTC), ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAppointmentWindow(tc.start, now, time.UTC)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("expected accepted, got %v", err)
				}
				return
			}
			if msg := validationMessage(t, err); msg != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, msg)
			}
		})
	}
}

func TestValidateAppointmentWindowUsesBusinessTimezone(t *testing.T) {
	bogota := time.FixedZone("COT", -5*60*60)
	// 21:00 on March 10 in Bogota, already March 11 in UTC
	now := time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC)

	if err := ValidateAppointmentWindow(time.Date(2025, 3, 10, 22, 0, 0, 0, bogota), now, bogota); err != nil {
		t.Fatalf("later the same local day should pass, got %v", err)
	}
	err := ValidateAppointmentWindow(time.Date(2025, 3, 10, 20, 0, 0, 0, bogota), now, bogota)
	if msg := validationMessage(t, err); !strings.Contains(msg, "15 minutes") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestParseStartTime(t *testing.T) {
	bogota := time.FixedZone("COT", -5*60*60)

	got, err := ParseStartTime("2025-03-11T10:00:00-05:00", time.UTC)
	if err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if !got.Equal(time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected instant %s", got)
	}

	got, err = ParseStartTime("2025-03-11T10:00", bogota)
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if !got.Equal(time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("zone-less input must be read in the business zone, got %s", got)
	}

	_, err = ParseStartTime("next tuesday", time.UTC)
	if msg := validationMessage(t, err); msg != "Invalid date format" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func validRequest() CreateRequest {
	return CreateRequest{
		EmployeeID:         uuid.NewString(),
		ConsultationTypeID: uuid.NewString(),
		ModalityID:         uuid.NewString(),
		StartTime:          "2025-03-11T10:00:00Z",
	}
}

func TestValidateCreatePayloadErrorOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateRequest)
		want   string
	}{
		{"no date", func(r *CreateRequest) { r.StartTime = ""; r.ModalityID = "" }, "Date is required"},
		{"no type", func(r *CreateRequest) { r.ConsultationTypeID = ""; r.ModalityID = "" }, "Consultation type is required"},
		{"no modality", func(r *CreateRequest) { r.ModalityID = "" }, "Modality is required"},
		{"bad type", func(r *CreateRequest) { r.ConsultationTypeID = "42"; r.ModalityID = "x" }, "Invalid consultation type ID format"},
		{"bad modality", func(r *CreateRequest) { r.ModalityID = "virtual" }, "Invalid modality ID format"},
		{"bad employee", func(r *CreateRequest) { r.EmployeeID = "not-a-uuid" }, "Invalid employee ID format"},
		{"bad customer", func(r *CreateRequest) { r.CustomerID = "123e4567e89b12d3a456426614174000" }, "Invalid user ID format"},
		{"company", func(r *CreateRequest) { r.Company = strings.Repeat("a", 201) }, "Company name exceeds maximum length of 200 characters"},
		{"description", func(r *CreateRequest) { r.Description = strings.Repeat("a", 1001) }, "Description exceeds maximum length of 1000 characters"},
		{"address", func(r *CreateRequest) { r.Address = strings.Repeat("a", 501) }, "Address exceeds maximum length of 500 characters"},
		{"duration", func(r *CreateRequest) { r.DurationMinutes = 10 }, "Duration must be between 15 and 240 minutes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := ValidateCreatePayload(req, time.UTC)
			if msg := validationMessage(t, err); msg != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, msg)
			}
		})
	}
}

func TestValidateCreatePayloadSanitizesText(t *testing.T) {
	req := validRequest()
	req.Company = "  <b>Acme</b> "
	req.Description = "<script>alert(1)</script>"
	req.Address = strings.Repeat("z", 500)

	in, err := ValidateCreatePayload(req, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Company.String() != "bAcme/b" {
		t.Fatalf("unexpected company %q", in.Company)
	}
	if in.Description.String() != "scriptalert(1)/script" {
		t.Fatalf("unexpected description %q", in.Description)
	}
	if in.Address.Ptr() == nil || len(*in.Address.Ptr()) != 500 {
		t.Fatal("address at the limit must be kept")
	}
	if NewSanitizedText("   ").Ptr() != nil {
		t.Fatal("blank text must map to nil")
	}
	if in.DurationMinutes != DefaultDurationMinutes {
		t.Fatalf("expected default duration, got %d", in.DurationMinutes)
	}
}

func TestEndTimeIsStartPlusDuration(t *testing.T) {
	for minutes := MinDurationMinutes; minutes <= MaxDurationMinutes; minutes += 5 {
		req := validRequest()
		req.DurationMinutes = minutes

		in, err := ValidateCreatePayload(req, time.UTC)
		if err != nil {
			t.Fatalf("duration %d: %v", minutes, err)
		}
		if got := in.EndTime().Sub(in.StartTime); got != time.Duration(minutes)*time.Minute {
			t.Fatalf("duration %d: end - start = %s", minutes, got)
		}
	}
}

func TestValidateStatusTransitionRequest(t *testing.T) {
	for _, ok := range []string{"pending", "approved", "rejected"} {
		if s, err := ValidateStatusTransitionRequest(ok); err != nil || string(s) != ok {
			t.Fatalf("%q: got %q, %v", ok, s, err)
		}
	}
	for _, bad := range []string{"", "Approved", "cancelled", " pending"} {
		_, err := ValidateStatusTransitionRequest(bad)
		if msg := validationMessage(t, err); msg != "Invalid status value" {
			t.Fatalf("%q: unexpected message %q", bad, msg)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	if !IsValidUUID("123E4567-e89b-12d3-a456-426614174000") {
		t.Fatal("mixed case uuid should be valid")
	}
	for _, bad := range []string{"", "123e4567e89b12d3a456426614174000", "{123e4567-e89b-12d3-a456-426614174000}", "urn:uuid:123e4567-e89b-12d3-a456-426614174000"} {
		if IsValidUUID(bad) {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}
