package model

import (
	"fmt"
	"strings"
	"time"
)

// ActivationCode is a single-use token that authorizes one hardware binding.
// Codes are created in batches by the generator and are immutable apart from
// the usage flag.
type ActivationCode struct {
	ID           int64     `json:"id" db:"id"`
	Code         string    `json:"code" db:"code"`
	LicenseType  string    `json:"license_type" db:"license_type"`
	DurationDays int       `json:"duration" db:"duration"`
	IsUsed       bool      `json:"is_used" db:"is_used"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CodeFilter selects activation codes by usage state.
type CodeFilter int

const (
	CodeFilterAll CodeFilter = iota
	CodeFilterUsed
	CodeFilterUnused
)

// String returns the wire name of the filter.
func (f CodeFilter) String() string {
	switch f {
	case CodeFilterUsed:
		return "used"
	case CodeFilterUnused:
		return "unused"
	default:
		return "all"
	}
}

// ParseCodeFilter converts a wire name into a CodeFilter. The empty string
// selects all codes.
func ParseCodeFilter(s string) (CodeFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return CodeFilterAll, nil
	case "used":
		return CodeFilterUsed, nil
	case "unused":
		return CodeFilterUnused, nil
	default:
		return CodeFilterAll, fmt.Errorf("unknown code filter %q (want all, used or unused)", s)
	}
}

// CodeStats summarizes the license tables for the admin surface.
type CodeStats struct {
	TotalCodes     int64 `json:"total_codes" db:"total_codes"`
	UsedCodes      int64 `json:"used_codes" db:"used_codes"`
	UnusedCodes    int64 `json:"unused_codes" db:"unused_codes"`
	Bindings       int64 `json:"bindings" db:"bindings"`
	ActiveBindings int64 `json:"active_bindings" db:"active_bindings"`
}
