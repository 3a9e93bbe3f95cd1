package intent

import (
	"regexp"
	"strings"
)

// Entity keys produced by ExtractEntities.
const (
	EntityAmount        = "amount"
	EntityCardLastFour  = "card_last_four"
	EntityAccountType   = "account_type"
	EntityDateReference = "date_reference"
)

var (
	amountPattern = regexp.MustCompile(`\$?(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`)
	cardPattern   = regexp.MustCompile(`\b\d{4}\b`)

	accountTypes = []string{"savings", "checking", "current", "credit"}
	dateKeywords = []string{"today", "yesterday", "last week", "last month"}
)

// ExtractEntities pulls intent-agnostic entities out of a message:
// a monetary amount, a bare 4-digit token (candidate card last-4), an
// account-type keyword, and a relative date keyword. Check order is
// fixed; each entity is present only if found.
func ExtractEntities(message string) map[string]string {
	entities := make(map[string]string)

	if m := amountPattern.FindStringSubmatch(message); m != nil {
		entities[EntityAmount] = strings.ReplaceAll(m[1], ",", "")
	}

	if m := cardPattern.FindString(message); m != "" {
		entities[EntityCardLastFour] = m
	}

	msg := strings.ToLower(message)
	for _, accType := range accountTypes {
		if strings.Contains(msg, accType) {
			entities[EntityAccountType] = accType
			break
		}
	}

	for _, kw := range dateKeywords {
		if strings.Contains(msg, kw) {
			entities[EntityDateReference] = kw
			break
		}
	}

	return entities
}
