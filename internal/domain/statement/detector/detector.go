// Package detector infers which statement columns play which semantic role
// from the header row alone. Banks never agree on header names, so detection
// scores every header against per-role pattern lists and reports a
// confidence figure the caller uses to decide whether an operator must
// confirm the mapping by hand.
package detector

import (
	"strings"

	"github.com/lvandyk/schoolpay/internal/domain/statement/profile"
)

// Role is a semantic column role in a bank statement.
type Role string

const (
	RoleReference   Role = "reference"
	RoleAmount      Role = "amount"
	RoleDate        Role = "date"
	RoleDescription Role = "description"
	RoleDebit       Role = "debit"
	RoleCredit      Role = "credit"
	RoleBalance     Role = "balance"
)

// rolePriority fixes the assignment order. Earlier roles claim contested
// headers first.
var rolePriority = []Role{
	RoleReference, RoleAmount, RoleDate, RoleDescription,
	RoleDebit, RoleCredit, RoleBalance,
}

// rolePatterns holds the case-insensitive vocabulary per role. An exact
// normalized match scores 10, substring containment scores 5.
var rolePatterns = map[Role][]string{
	RoleReference: {
		"reference", "ref", "ref no", "reference number", "your reference",
		"payment reference", "beneficiary reference", "transaction reference",
	},
	RoleAmount: {
		"amount", "value", "transaction amount", "payment amount", "amt",
	},
	RoleDate: {
		"date", "transaction date", "txn date", "payment date", "value date",
		"posting date", "effective date",
	},
	RoleDescription: {
		"description", "narrative", "details", "transaction description",
		"memo", "particulars", "remarks",
	},
	RoleDebit: {
		"debit", "debit amount", "debits", "money out", "withdrawal",
	},
	RoleCredit: {
		"credit", "credit amount", "credits", "money in", "deposit",
	},
	RoleBalance: {
		"balance", "running balance", "closing balance", "available balance",
	},
}

const (
	scoreExact     = 10
	scoreSubstring = 5
)

// Confidence weights for the required roles. Split debit/credit columns
// earn a small bonus on top.
const (
	weightReference   = 10
	weightAmount      = 10
	weightDate        = 10
	weightDescription = 5
	weightTotal       = weightReference + weightAmount + weightDate + weightDescription
	splitBonus        = 5
	manualThreshold   = 80
)

// Result is the outcome of header auto-detection.
type Result struct {
	Mapping            profile.ColumnMapping `json:"mapping"`
	Confidence         int                   `json:"confidence"`
	NeedsManualMapping bool                  `json:"needsManualMapping"`
}

// Detect assigns each role to its best-scoring unused header and computes
// the overall confidence.
func Detect(headers []string) Result {
	assigned := assignRoles(headers)

	// Separate debit and credit columns beat a combined amount column.
	if assigned[RoleDebit] != "" && assigned[RoleCredit] != "" {
		delete(assigned, RoleAmount)
	}

	mapping := profile.ColumnMapping{
		Reference:   assigned[RoleReference],
		Amount:      assigned[RoleAmount],
		Date:        assigned[RoleDate],
		Description: assigned[RoleDescription],
		Debit:       assigned[RoleDebit],
		Credit:      assigned[RoleCredit],
		Balance:     assigned[RoleBalance],
	}

	confidence := scoreConfidence(mapping)
	return Result{
		Mapping:            mapping,
		Confidence:         confidence,
		NeedsManualMapping: confidence < manualThreshold,
	}
}

// assignRoles walks roles in priority order, giving each its highest-scoring
// header that no earlier role has claimed. Ties go to the first header.
func assignRoles(headers []string) map[Role]string {
	used := make(map[string]bool, len(headers))
	assigned := make(map[Role]string, len(rolePriority))

	for _, role := range rolePriority {
		best := ""
		bestScore := 0
		for _, header := range headers {
			if header == "" || used[header] {
				continue
			}
			if score := scoreHeader(header, rolePatterns[role]); score > bestScore {
				best = header
				bestScore = score
			}
		}
		if best != "" {
			assigned[role] = best
			used[best] = true
		}
	}
	return assigned
}

func scoreHeader(header string, patterns []string) int {
	normalized := normalizeHeader(header)
	for _, pattern := range patterns {
		if normalized == pattern {
			return scoreExact
		}
	}
	for _, pattern := range patterns {
		if strings.Contains(normalized, pattern) {
			return scoreSubstring
		}
	}
	return 0
}

func normalizeHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func scoreConfidence(m profile.ColumnMapping) int {
	earned := 0
	if m.Reference != "" {
		earned += weightReference
	}
	if m.Amount != "" || (m.Debit != "" && m.Credit != "") {
		earned += weightAmount
	}
	if m.Date != "" {
		earned += weightDate
	}
	if m.Description != "" {
		earned += weightDescription
	}
	if m.Debit != "" && m.Credit != "" {
		earned += splitBonus
	}

	confidence := earned * 100 / weightTotal
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}
