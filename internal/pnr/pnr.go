// Package pnr generates passenger name record locators of the form
// PP9999LL: a two letter prefix, four digits and two uppercase letters.
package pnr

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	Length  = 8
	digits  = "0123456789"
	letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var DefaultPrefixes = []string{"FL", "AI", "IN", "UK", "SG", "DE"}

type Generator interface {
	Generate() string
}

type RandomGenerator struct {
	prefixes []string
}

// NewGenerator returns a generator drawing prefixes from the given set.
// Invalid prefixes are skipped; an empty set falls back to DefaultPrefixes.
func NewGenerator(prefixes ...string) *RandomGenerator {
	valid := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.ToUpper(strings.TrimSpace(p))
		if len(p) == 2 && isLetters(p) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		valid = DefaultPrefixes
	}
	return &RandomGenerator{prefixes: valid}
}

func (g *RandomGenerator) Generate() string {
	var b strings.Builder
	b.Grow(Length)
	b.WriteString(g.prefixes[randIndex(len(g.prefixes))])
	for i := 0; i < 4; i++ {
		b.WriteByte(digits[randIndex(len(digits))])
	}
	for i := 0; i < 2; i++ {
		b.WriteByte(letters[randIndex(len(letters))])
	}
	return b.String()
}

// Valid reports whether s has the PNR shape.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	return isLetters(s[:2]) && isDigits(s[2:6]) && isLetters(s[6:])
}

func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("pnr: crypto/rand failed: " + err.Error())
	}
	return int(v.Int64())
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
