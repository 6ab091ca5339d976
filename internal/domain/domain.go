package domain

import (
	"fmt"
	"strings"
)

// FormKind identifies one lead-capture form.
type FormKind string

const (
	KindGuidance   FormKind = "guidance"
	KindScheduling FormKind = "scheduling"
	KindNewsletter FormKind = "newsletter"
)

// Collection names of the persisted records.
const (
	CollectionGuidance   = "guidanceRequests"
	CollectionBookings   = "bookings"
	CollectionNewsletter = "newsletterSubscriptions"
)

// Record statuses.
const (
	StatusNew     = "new"
	StatusPending = "pending"
)

// ParseFormKind maps a path segment to a form kind. "consultation" is the
// public name of the guidance form.
func ParseFormKind(s string) (FormKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "guidance", "consultation":
		return KindGuidance, nil
	case "scheduling", "booking":
		return KindScheduling, nil
	case "newsletter":
		return KindNewsletter, nil
	default:
		return "", fmt.Errorf("invalid form kind %q", s)
	}
}

// Kinds lists every form kind.
func Kinds() []FormKind {
	return []FormKind{KindGuidance, KindScheduling, KindNewsletter}
}

// Collection returns the collection a kind persists to.
func (k FormKind) Collection() string {
	switch k {
	case KindGuidance:
		return CollectionGuidance
	case KindScheduling:
		return CollectionBookings
	case KindNewsletter:
		return CollectionNewsletter
	}
	return ""
}

// Status returns the status a new record of this kind is created with.
func (k FormKind) Status() string {
	switch k {
	case KindGuidance:
		return StatusNew
	case KindScheduling:
		return StatusPending
	}
	return ""
}

// Notifies reports whether submissions of this kind are announced to the operator.
func (k FormKind) Notifies() bool {
	return k == KindGuidance || k == KindScheduling
}

// SuccessMessage is the confirmation shown after a kind is persisted.
func (k FormKind) SuccessMessage() string {
	switch k {
	case KindGuidance:
		return "Your request has been submitted successfully! We will get back to you soon."
	case KindScheduling:
		return "Booking request submitted successfully! We will confirm your session soon."
	case KindNewsletter:
		return "Thank you for subscribing! You'll receive our latest updates soon."
	}
	return "Submitted."
}

// Collections lists every known collection.
func Collections() []string {
	return []string{CollectionGuidance, CollectionBookings, CollectionNewsletter}
}

// ValidCollection reports whether name is a known collection.
func ValidCollection(name string) bool {
	for _, c := range Collections() {
		if c == name {
			return true
		}
	}
	return false
}

// Record is a validated submission handed to the persistence gateway. The
// gateway assigns the id and creation timestamp.
type Record struct {
	Status string            `json:"status,omitempty"`
	Fields map[string]string `json:"fields"`
}

// StoredRecord is a record as read back from a collection.
type StoredRecord struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection"`
	Status     string            `json:"status,omitempty"`
	Fields     map[string]string `json:"fields"`
	CreatedAt  string            `json:"createdAt" format:"date-time"`
}

// FormResult is returned to the caller of every form submission.
type FormResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Issues  []string          `json:"issues,omitempty"`
}

// AuthResult is a FormResult that may carry a bearer token.
type AuthResult struct {
	FormResult
	Token string `json:"token,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	Collection string `json:"collection,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"createdAt" format:"date-time"`
}

// GuidanceRequest is the typed view of a guidance/consultation submission.
type GuidanceRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Message string `json:"message"`
}

func GuidanceFromValues(v map[string]string) GuidanceRequest {
	return GuidanceRequest{
		Name:    v["name"],
		Email:   v["email"],
		Phone:   v["phone"],
		Company: v["company"],
		Message: v["message"],
	}
}

// Booking is the typed view of a scheduling submission.
type Booking struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Service       string `json:"service"`
	PreferredDate string `json:"preferredDate"`
	PreferredTime string `json:"preferredTime"`
	Notes         string `json:"notes,omitempty"`
}

func BookingFromValues(v map[string]string) Booking {
	return Booking{
		Name:          v["name"],
		Email:         v["email"],
		Phone:         v["phone"],
		Service:       v["service"],
		PreferredDate: v["preferredDate"],
		PreferredTime: v["preferredTime"],
		Notes:         v["notes"],
	}
}

// Registration is the typed view of an account registration.
type Registration struct {
	FullName string
	Email    string
	Password string
}

func RegistrationFromValues(v map[string]string) Registration {
	return Registration{
		FullName: strings.TrimSpace(v["fullName"]),
		Email:    strings.ToLower(strings.TrimSpace(v["email"])),
		Password: v["password"],
	}
}
