package internal

import (
	"math"
	"regexp"
	"strings"
)

// leakedFieldPattern matches service names that swallowed a quantity or
// price token during parsing, e.g. "widgets quantity 5".
var leakedFieldPattern = regexp.MustCompile(`\b(?:quantity|qty|price|rate)\s+\d+`)

// IsValidService reports whether s can appear in a quotation.
func IsValidService(s Service) bool {
	if strings.TrimSpace(s.ServiceName) == "" {
		return false
	}
	return !leakedFieldPattern.MatchString(strings.ToLower(s.ServiceName))
}

// CleanInvalidServices returns the valid services of the input in order.
// The result is never nil.
func CleanInvalidServices(services []Service) []Service {
	cleaned := make([]Service, 0, len(services))
	for _, s := range services {
		if IsValidService(s) {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

// ValidateQuotation reports whether q carries a services list and, as a side
// effect, replaces q.Services with its valid subsequence.
func ValidateQuotation(q *Quotation) bool {
	if q == nil || q.Services == nil {
		return false
	}
	q.Services = CleanInvalidServices(q.Services)
	return true
}

// NormalizeQuotation always returns a structurally complete quotation.
// A nil input yields the empty quotation; invalid services are dropped and
// missing or non-finite totals become zero.
func NormalizeQuotation(q *Quotation) Quotation {
	if q == nil {
		return EmptyQuotation()
	}
	services := make([]Service, 0, len(q.Services))
	for _, s := range q.Services {
		if IsValidService(s) {
			services = append(services, s.clone())
		}
	}
	return Quotation{
		Services:      services,
		Subtotal:      orZero(q.Subtotal),
		GSTPercentage: orZero(q.GSTPercentage),
		GSTAmount:     orZero(q.GSTAmount),
		GrandTotal:    orZero(q.GrandTotal),
	}
}

func orZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// firstNonZero mirrors a falsy-fallback: a is used unless it is zero.
func firstNonZero(a, b float64) float64 {
	if a != 0 && !math.IsNaN(a) {
		return a
	}
	return b
}
