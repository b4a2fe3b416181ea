package prospect_test

import (
	"errors"
	"strings"
	"testing"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
)

func TestNewCandidateNormalizesEmail(t *testing.T) {
	t.Parallel()

	c, err := domain.NewCandidate("  Alice@Example.COM ", "Alice", "Smith")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Email != "alice@example.com" {
		t.Fatalf("unexpected email: %s", c.Email)
	}
	if c.FirstName != "Alice" || c.LastName != "Smith" {
		t.Fatalf("unexpected names: %q %q", c.FirstName, c.LastName)
	}
}

func TestNewCandidateInvalidEmail(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 65) + "@example.com"
	huge := "a@" + strings.Repeat(strings.Repeat("b", 60)+".", 5) + "com"
	for _, email := range []string{
		"", "alice-at-example.com", "Alice <alice@example.com>", "a@",
		"a@x", "a@localhost", "a@-x-.com", "a@x..com", "a@[127.0.0.1]", "a@127.0.0.1",
		"a@exa_mple.com", `"a b"@example.com`, long, huge,
	} {
		_, err := domain.NewCandidate(email, "", "")
		if !errors.Is(err, domain.ErrInvalidEmail) {
			t.Fatalf("email %q: expected ErrInvalidEmail, got %v", email, err)
		}
	}
}

func TestNewCandidateAcceptsCommonAddresses(t *testing.T) {
	t.Parallel()

	for _, email := range []string{"a.b+tag@mail.example.co.uk", "x_y@sub-domain.io", "1@123.example"} {
		if _, err := domain.NewCandidate(email, "", ""); err != nil {
			t.Fatalf("email %q: expected valid, got %v", email, err)
		}
	}
}

func TestNewCandidateAllowsEmptyNames(t *testing.T) {
	t.Parallel()

	c, err := domain.NewCandidate("bob@example.com", "", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.FirstName != "" || c.LastName != "" {
		t.Fatalf("expected empty names, got %q %q", c.FirstName, c.LastName)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to domain.ImportJobStatus
		want     bool
	}{
		{domain.StatusCreated, domain.StatusProcessing, true},
		{domain.StatusCreated, domain.StatusFailed, true},
		{domain.StatusCreated, domain.StatusFinished, false},
		{domain.StatusProcessing, domain.StatusFinished, true},
		{domain.StatusProcessing, domain.StatusFailed, true},
		{domain.StatusProcessing, domain.StatusCreated, false},
		{domain.StatusFinished, domain.StatusFailed, false},
		{domain.StatusFailed, domain.StatusProcessing, false},
	}
	for _, tc := range cases {
		if got := domain.CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestSourcesOf(t *testing.T) {
	t.Parallel()

	got := domain.SourcesOf(domain.StatusFailed)
	if len(got) != 2 || got[0] != domain.StatusCreated || got[1] != domain.StatusProcessing {
		t.Fatalf("unexpected sources of failed: %v", got)
	}
	if got := domain.SourcesOf(domain.StatusCreated); len(got) != 0 {
		t.Fatalf("created must have no sources, got %v", got)
	}
}

func TestClampProgress(t *testing.T) {
	t.Parallel()

	if got := domain.ClampProgress(12, 10); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := domain.ClampProgress(-1, 10); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := domain.ClampProgress(4, 10); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}
