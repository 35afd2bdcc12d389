package model

import (
	"fmt"
	"strings"
)

// Gender is used by route eligibility rules. GenderAll matches any gender.
type Gender int

const (
	GenderAll Gender = iota
	GenderMale
	GenderFemale
)

// String returns a human-readable representation of the gender.
func (g Gender) String() string {
	switch g {
	case GenderAll:
		return "all"
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

// ParseGender parses "all", "male" or "female". An empty string is GenderAll.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return GenderAll, nil
	case "male", "m":
		return GenderMale, nil
	case "female", "f":
		return GenderFemale, nil
	default:
		return GenderAll, fmt.Errorf("unknown gender %q", s)
	}
}

// Person is a simulated household member.
type Person struct {
	ID     string
	Name   string
	Gender Gender
	Age    int
}
