// Package passwords validates new passwords against the institution's
// strength policy before they are hashed.
package passwords

import (
	"bufio"
	"bytes"
	"compress/gzip"
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// commonPasswordsGz holds 20,000 frequently chosen passwords, lowercase, one
// per line, gzip-compressed.
//
//go:embed common-passwords.txt.gz
var commonPasswordsGz []byte

// commonPasswords decodes the embedded list once per process.
var commonPasswords = sync.OnceValue(func() map[string]struct{} {
	set, err := readPasswordList(bytes.NewReader(commonPasswordsGz))
	if err != nil {
		panic(fmt.Errorf("embedded common-password list: %w", err))
	}
	return set
})

// readPasswordList reads a gzip-compressed newline-separated list.
func readPasswordList(r io.Reader) (map[string]struct{}, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	set := make(map[string]struct{}, 20000)
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			set[strings.ToLower(line)] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// DefaultMaxSimilarity is the quick-ratio at or above which a password is
// considered derived from a user attribute.
const DefaultMaxSimilarity = 0.7

// Attributes are the user fields a password must not resemble.
type Attributes struct {
	Email     string
	FirstName string
	LastName  string
}

// Policy is a configurable password-strength policy.
type Policy struct {
	MinLength     int
	MaxSimilarity float64
	common        map[string]struct{}
}

// NewPolicy returns a Policy with the embedded common-password list.
func NewPolicy(minLength int) *Policy {
	return &Policy{MinLength: minLength, MaxSimilarity: DefaultMaxSimilarity, common: commonPasswords()}
}

// Validate returns every rule password violates, in a stable order. An empty
// result means the password is acceptable.
func (p *Policy) Validate(password string, attrs Attributes) []string {
	var violations []string

	if len([]rune(password)) < p.MinLength {
		violations = append(violations,
			fmt.Sprintf("This password is too short. It must contain at least %d characters.", p.MinLength))
	}
	if password != "" && isNumeric(password) {
		violations = append(violations, "This password is entirely numeric.")
	}
	if _, ok := p.common[strings.ToLower(strings.TrimSpace(password))]; ok {
		violations = append(violations, "This password is too common.")
	}
	if field := p.similarTo(password, attrs); field != "" {
		violations = append(violations, fmt.Sprintf("The password is too similar to the %s.", field))
	}

	return violations
}

var nonWord = regexp.MustCompile(`\W+`)

func (p *Policy) similarTo(password string, attrs Attributes) string {
	pw := strings.ToLower(password)
	if pw == "" {
		return ""
	}

	fields := []struct {
		name  string
		value string
	}{
		{"email address", attrs.Email},
		{"first name", attrs.FirstName},
		{"last name", attrs.LastName},
	}

	for _, f := range fields {
		value := strings.ToLower(strings.TrimSpace(f.value))
		if value == "" {
			continue
		}
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			if part == "" || exceedsLengthRatio(pw, part, p.MaxSimilarity) {
				continue
			}
			if quickRatio(pw, part) >= p.MaxSimilarity {
				return f.name
			}
		}
	}
	return ""
}

// exceedsLengthRatio skips comparisons where the password is so much longer
// than the value that similarity cannot reach maxSimilarity.
func exceedsLengthRatio(password, value string, maxSimilarity float64) bool {
	pwLen, valueLen := len([]rune(password)), len([]rune(value))
	return pwLen >= 10*valueLen && float64(valueLen) < maxSimilarity/2*float64(pwLen)
}

// quickRatio is 2*M/T where M counts characters common to both strings
// (as multisets) and T is the total length.
func quickRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	avail := make(map[rune]int, len(rb))
	for _, r := range rb {
		avail[r]++
	}
	matches := 0
	for _, r := range ra {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
