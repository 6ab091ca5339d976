package schema

import "draughtsman/internal/domain"

var nameRule = Rule{
	Field:      "name",
	Label:      "Name",
	Required:   true,
	MinLen:     2,
	MinMessage: "Name must be at least 2 characters.",
}

var emailRule = Rule{
	Field:         "email",
	Label:         "Email",
	Required:      true,
	Format:        FormatEmail,
	FormatMessage: "Invalid email address.",
}

var passwordRule = Rule{
	Field:      "password",
	Label:      "Password",
	Required:   true,
	MinLen:     6,
	MinMessage: "Password must be at least 6 characters.",
}

// Guidance backs the consultation/guidance form.
var Guidance = Schema{
	Name: "guidance",
	Rules: []Rule{
		nameRule,
		emailRule,
		{Field: "phone", Label: "Phone", MinLen: 10, MinMessage: "Phone number seems too short."},
		{Field: "company", Label: "Company"},
		{Field: "message", Label: "Message", Required: true, MinLen: 10, MinMessage: "Message must be at least 10 characters."},
	},
}

// TimeSlots are the bookable session windows.
var TimeSlots = []string{"09:00-11:00", "11:00-13:00", "14:00-16:00", "16:00-18:00"}

var Scheduling = Schema{
	Name: "scheduling",
	Rules: []Rule{
		nameRule,
		emailRule,
		{Field: "phone", Label: "Phone"},
		{Field: "service", Label: "Service", Required: true, RequiredMessage: "Please select a service."},
		{Field: "preferredDate", Label: "Preferred date", Required: true, RequiredMessage: "Please select a date."},
		{
			Field: "preferredTime", Label: "Preferred time", Required: true, RequiredMessage: "Please select a time.",
			Format: FormatOneOf, Options: TimeSlots, FormatMessage: "Please select a time.",
		},
		{Field: "notes", Label: "Notes"},
	},
}

var Newsletter = Schema{
	Name:  "newsletter",
	Rules: []Rule{emailRule},
}

// Registration validates account sign-up. It is handed to the identity
// provider and never persisted as a form record.
var Registration = Schema{
	Name: "registration",
	Rules: []Rule{
		{Field: "fullName", Label: "Full name", Required: true, MinLen: 2, MinMessage: "Full name must be at least 2 characters."},
		emailRule,
		passwordRule,
		{Field: "confirmPassword", Label: "Confirm password", Required: true, EqualTo: "password", EqualMessage: "Passwords don't match."},
	},
}

var Login = Schema{
	Name:  "login",
	Rules: []Rule{emailRule, passwordRule},
}

// For returns the schema of a form kind.
func For(kind domain.FormKind) (Schema, bool) {
	switch kind {
	case domain.KindGuidance:
		return Guidance, true
	case domain.KindScheduling:
		return Scheduling, true
	case domain.KindNewsletter:
		return Newsletter, true
	}
	return Schema{}, false
}
