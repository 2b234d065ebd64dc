package core

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSeparators   = regexp.MustCompile(`[\s-]+`)
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Slugify converts `s` to a lowercase, hyphen separated, URL friendly string.
func Slugify(s string) string {
	s = CleanString(s, true /* lower */)
	s = slugInvalidChars.ReplaceAllString(s, "")
	return strings.Trim(slugSeparators.ReplaceAllString(s, "-"), "-")
}

// ToMinorUnits converts an amount (e.g. naira) to its lowest currency unit (e.g. kobo).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// Getwd tries to find the project root: the closest parent directory holding a go.mod file.
// go-test changes the working directory to the test package being run during tests,
// so the current working directory cannot be relied on. Falls back to the working directory.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

// Round2 rounds `f` to 2 decimal places.
func Round2(f float64) float64 {
	r, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return r
}
