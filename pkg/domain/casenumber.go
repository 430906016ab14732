package domain

import (
	"fmt"
	"regexp"
	"strings"

	dErrors "casetrace/pkg/domain-errors"
)

// CaseNumberPrefix is the stable prefix of every public case identifier.
const CaseNumberPrefix = "PEH"

// CaseNumber is the public, immutable identifier of a case, assigned once at
// creation. Format: PEH-<year>-<zero-padded sequence>, e.g. PEH-2026-0001.
type CaseNumber string

var caseNumberPattern = regexp.MustCompile(`^PEH-\d{4}-\d{4,}$`)

// FormatCaseNumber builds a case number from a year and a sequence value.
func FormatCaseNumber(year, seq int) CaseNumber {
	return CaseNumber(fmt.Sprintf("%s-%d-%04d", CaseNumberPrefix, year, seq))
}

// ParseCaseNumber constructs a CaseNumber from external input.
// Errors: CodeInvalidInput when the value does not match the format contract.
func ParseCaseNumber(s string) (CaseNumber, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "case number cannot be empty")
	}
	if !caseNumberPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid case number format")
	}
	return CaseNumber(s), nil
}

func (n CaseNumber) String() string { return string(n) }

func (n CaseNumber) IsZero() bool { return n == "" }
