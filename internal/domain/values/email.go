package values

import (
	"encoding/json"
	"net/mail"
	"regexp"
	"strings"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

// Email represents a validated, lower-cased account email
type Email struct {
	address string
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NewEmail creates a new Email value object with validation
func NewEmail(address string) (Email, error) {
	normalized := strings.TrimSpace(strings.ToLower(address))
	if normalized == "" {
		return Email{}, errors.NewValidationError("EMPTY_EMAIL", "email address cannot be empty")
	}

	parsed, err := mail.ParseAddress(normalized)
	if err != nil || parsed.Address != normalized {
		return Email{}, errors.NewValidationError("INVALID_EMAIL", "invalid email format")
	}
	if !emailRegex.MatchString(parsed.Address) {
		return Email{}, errors.NewValidationError("INVALID_EMAIL", "email address does not meet format requirements")
	}
	if len(parsed.Address) > 254 {
		return Email{}, errors.NewValidationError("EMAIL_TOO_LONG", "email address too long (max 254 characters)")
	}

	return Email{address: parsed.Address}, nil
}

// MustNewEmail creates Email and panics on error (for constants/tests)
func MustNewEmail(address string) Email {
	email, err := NewEmail(address)
	if err != nil {
		panic(err)
	}
	return email
}

// String returns the email address
func (e Email) String() string {
	return e.address
}

// IsEmpty checks if the email is empty
func (e Email) IsEmpty() bool {
	return e.address == ""
}

// MarshalJSON implements JSON marshaling
func (e Email) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.address)
}

// UnmarshalJSON implements JSON unmarshaling
func (e *Email) UnmarshalJSON(data []byte) error {
	var address string
	if err := json.Unmarshal(data, &address); err != nil {
		return err
	}

	email, err := NewEmail(address)
	if err != nil {
		return err
	}

	*e = email
	return nil
}
