package features

import (
	"regexp"
	"strings"
)

// MinFingerprintLen is the shortest device fingerprint treated as present.
const MinFingerprintLen = 8

var disposableEmail = regexp.MustCompile(`(?i)tempmail|guerrilla|disposable|throwaway|10minute|mailinator|yopmail`)

var digitRun = regexp.MustCompile(`\d{4,}`)

// Country tiers, ISO-3166-1 alpha-2.
var (
	highRiskCountries = set("NG", "RU", "CN", "VN", "PH", "ID", "UA", "BY", "KP", "IR")
	medRiskCountries  = set("BR", "MX", "AR", "CO", "IN", "PK", "BD", "EG", "ZA")
)

// Well-known test card prefixes; the first group is also seen heavily in
// card-testing attacks.
var (
	riskyBINs = set("400000", "411111", "555555", "400002")
	testBINs  = set("400000", "411111", "400002", "400003", "555555", "555556", "378282", "371449")
)

// EmailRisk: disposable domain 1, long digit run in the local part 0.25.
func EmailRisk(email string) float64 {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return 0
	}
	if disposableEmail.MatchString(email) {
		return 1
	}
	local, _, _ := strings.Cut(email, "@")
	if digitRun.MatchString(local) {
		return 0.25
	}
	return 0
}

// CountryRisk: high-risk tier 1, medium tier 0.5.
func CountryRisk(country string) float64 {
	c := strings.ToUpper(strings.TrimSpace(country))
	switch {
	case highRiskCountries[c]:
		return 1
	case medRiskCountries[c]:
		return 0.5
	}
	return 0
}

// BINRisk scores the first six digits of a card number. An absent BIN is
// treated as half-risky.
func BINRisk(bin string) float64 {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		return 0.5
	}
	if len(bin) > 6 {
		bin = bin[:6]
	}
	switch {
	case riskyBINs[bin]:
		return 1
	case testBINs[bin]:
		return 0.6
	case strings.HasPrefix(bin, "4"):
		return 0.15
	case strings.HasPrefix(bin, "5"):
		return 0.12
	case strings.HasPrefix(bin, "34"), strings.HasPrefix(bin, "37"):
		return 0.1
	}
	return 0.2
}

// AmountBucket flags large amounts and sub-5 card-testing probes.
func AmountBucket(amount float64) float64 {
	switch {
	case amount > 5000:
		return 1
	case amount > 2000:
		return 0.67
	case amount > 500:
		return 0.33
	case amount < 5:
		return 0.5
	}
	return 0
}

// OffHours: 01–05h UTC is 1, the hours around midnight are 0.5.
func OffHours(hour int) float64 {
	switch {
	case hour >= 1 && hour < 5:
		return 1
	case hour >= 23 || hour < 1:
		return 0.5
	}
	return 0
}

func set(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}
