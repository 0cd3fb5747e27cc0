// Package alias produces short URL-safe identifiers and validates
// caller-supplied custom aliases.
package alias

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/axellelanca/shortly/internal/errors"
)

// charset is the alphabet random aliases are drawn from: 62 symbols, giving
// 62^7 = ~3.5 trillion combinations at the default length.
const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the size of a randomly generated alias.
const Length = 7

// maxAliasLen caps a sanitized custom alias.
const maxAliasLen = 50

var (
	disallowed  = regexp.MustCompile(`[^a-z0-9\-_]`)
	separators  = regexp.MustCompile(`[-_]+`)
	edgeTrim    = regexp.MustCompile(`^-+|-+$`)
	digitsOnly  = regexp.MustCompile(`^\d+$`)
	denylist    = regexp.MustCompile(`^(admin|root|api|www|mail)$`)
	punctuation = regexp.MustCompile(`^[-_]+$`)
)

// stripMarks decomposes to NFD and drops the combining marks, so "café"
// becomes "cafe" before the charset filter runs.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Generate draws a random alias of the given length uniformly from the
// 62-symbol alphabet. Uses crypto/rand so codes are not guessable.
func Generate(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// Sanitize normalizes a raw custom alias into its canonical stored form:
// lower-cased, diacritics stripped, everything outside [a-z0-9-_] removed,
// separator runs collapsed to a single hyphen, edges trimmed, capped at 50
// characters. Idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ToLower(strings.TrimSpace(raw))

	if normalized, _, err := transform.String(stripMarks, s); err == nil {
		s = normalized
	}

	s = disallowed.ReplaceAllString(s, "")
	s = separators.ReplaceAllString(s, "-")
	s = edgeTrim.ReplaceAllString(s, "")

	if len(s) > maxAliasLen {
		s = s[:maxAliasLen]
		// Truncation may have cut just after a separator.
		s = edgeTrim.ReplaceAllString(s, "")
	}

	return s
}

// Validate checks whether a custom alias is acceptable after sanitization.
// Returns nil when the alias is usable, otherwise a ValidationError whose
// reason names the specific failure.
func Validate(raw string) error {
	sanitized := Sanitize(raw)

	if punctuation.MatchString(raw) || sanitized == "" {
		return apperrors.NewValidationError("alias", "alias is empty after sanitization")
	}
	if len(sanitized) < 2 {
		return apperrors.NewValidationError("alias", "alias must have at least 2 characters")
	}
	if digitsOnly.MatchString(sanitized) {
		return apperrors.NewValidationError("alias", "alias cannot be only numbers")
	}
	if denylist.MatchString(sanitized) {
		return apperrors.NewValidationError("alias", fmt.Sprintf("%q is not an allowed alias", sanitized))
	}
	return nil
}

// reservedPaths lists every alias that would collide with the application's
// own routing namespace: framework routes, auth routes, common system paths.
var reservedPaths = map[string]struct{}{}

func init() {
	for _, p := range []string{
		"shorten", "stats", "docs", "ping",
		"login", "register", "auth", "signin", "signup", "logout",
		"api", "favicon", "favicon.ico", "robots", "robots.txt",
		"sitemap", "sitemap.xml",
		"home", "dashboard", "profile", "settings", "admin", "user", "account",
		"about", "contact", "help", "support", "terms", "privacy", "policy",
		"public", "static", "assets", "images", "img", "css", "js", "fonts",
		"404", "500", "error", "not-found",
		"webhook", "webhooks", "callback", "oauth",
		"health", "status", "metrics", "monitoring",
		"www", "mail", "email", "ftp", "blog", "news", "shop", "store",
		"administrator", "manage", "management", "console",
		"download", "upload", "file", "files", "media",
	} {
		reservedPaths[p] = struct{}{}
	}
}

// IsReserved reports whether the alias collides with a system path.
// The check is exact and case-insensitive.
func IsReserved(a string) bool {
	_, ok := reservedPaths[strings.ToLower(a)]
	return ok
}
