package prospect

import (
	"net/mail"
	"strings"
	"time"
)

type Prospect struct {
	ID        int64
	OwnerID   int64
	FileID    *int64
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Candidate is a validated import row. Email is already lower-cased and is
// the reconciliation key.
type Candidate struct {
	Email     string
	FirstName string
	LastName  string
}

func NewCandidate(email, firstName, lastName string) (Candidate, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Candidate{}, ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !validAddress(email) {
		return Candidate{}, ErrInvalidEmail
	}

	return Candidate{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}, nil
}

const (
	maxEmailLength = 254
	maxLocalLength = 64
	maxLabelLength = 63
)

// validAddress applies the limits net/mail leaves out: RFC 5321 lengths, no
// quoted local part, and a dotted DNS host name as the domain.
func validAddress(email string) bool {
	if len(email) > maxEmailLength {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	local, domain := email[:at], email[at+1:]
	if len(local) > maxLocalLength || strings.HasPrefix(local, `"`) {
		return false
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}
	// a numeric top-level label means an IP address, not a host name
	return strings.ContainsFunc(labels[len(labels)-1], func(r rune) bool { return r < '0' || r > '9' })
}

func validLabel(label string) bool {
	if label == "" || len(label) > maxLabelLength {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}

type NewProspect struct {
	Email     string
	FirstName string
	LastName  string
	FileID    int64
}

type ProspectUpdate struct {
	ID        int64
	FirstName string
	LastName  string
	FileID    int64
}
