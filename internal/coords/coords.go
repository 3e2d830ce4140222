// Package coords parses on-screen coordinate readouts such as "37N/127E".
package coords

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Unit is a hemisphere letter.
type Unit string

const (
	North Unit = "N"
	South Unit = "S"
	East  Unit = "E"
	West  Unit = "W"
)

// Pattern matches a coordinate token anywhere inside a word.
var Pattern = regexp.MustCompile(`(?i)\d+[SN]/\d+[EW]`)

var (
	nonDigits  = regexp.MustCompile(`\D`)
	nonLetters = regexp.MustCompile(`[^A-Za-z]`)
)

// Coordinate is a parsed readout. Y is the latitude-like axis (N/S),
// X the longitude-like axis (E/W).
type Coordinate struct {
	Y     int  `json:"yValue"`
	YUnit Unit `json:"yUnit"`
	X     int  `json:"xValue"`
	XUnit Unit `json:"xUnit"`
}

// String renders the token form.
func (c Coordinate) String() string {
	return fmt.Sprintf("%d%s/%d%s", c.Y, c.YUnit, c.X, c.XUnit)
}

// ExtractToken returns the first whitespace-delimited token of text that
// contains a coordinate pattern.
func ExtractToken(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		for _, word := range strings.Fields(line) {
			if Pattern.MatchString(word) {
				return word, true
			}
		}
	}
	return "", false
}

// Parse converts a token into a Coordinate. Each half keeps only its digits
// for the value and only its letters (upper-cased) for the unit.
func Parse(token string) (Coordinate, bool) {
	halves := strings.Split(token, "/")
	if len(halves) < 2 {
		return Coordinate{}, false
	}

	y, yUnit, ok := parseHalf(halves[0])
	if !ok || (yUnit != North && yUnit != South) {
		return Coordinate{}, false
	}
	x, xUnit, ok := parseHalf(halves[1])
	if !ok || (xUnit != East && xUnit != West) {
		return Coordinate{}, false
	}
	return Coordinate{Y: y, YUnit: yUnit, X: x, XUnit: xUnit}, true
}

func parseHalf(s string) (int, Unit, bool) {
	digits := nonDigits.ReplaceAllString(s, "")
	unit := strings.ToUpper(nonLetters.ReplaceAllString(s, ""))
	if digits == "" || unit == "" {
		return 0, "", false
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, "", false
	}
	return v, Unit(unit), true
}

// ParseText extracts and parses the first coordinate in recognized text.
// The matched token is returned alongside for logging.
func ParseText(text string) (Coordinate, string, bool) {
	token, ok := ExtractToken(text)
	if !ok {
		return Coordinate{}, "", false
	}
	c, ok := Parse(token)
	return c, token, ok
}

// WithinTolerance reports whether a and b share both units and differ by at
// most tol on each axis.
func WithinTolerance(a, b Coordinate, tol int) bool {
	if a.YUnit != b.YUnit || a.XUnit != b.XUnit {
		return false
	}
	return abs(a.Y-b.Y) <= tol && abs(a.X-b.X) <= tol
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
