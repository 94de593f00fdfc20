package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Semester values accepted for a period.
const (
	SemesterFirst  = "1st"
	SemesterSecond = "2nd"
	SemesterSummer = "Summer"
)

// Period scopes accomplishment counters to an academic year and semester.
type Period struct {
	AcademicYear string `db:"academic_year" json:"academicYear"`
	Semester     string `db:"semester" json:"semester"`
}

// DefaultPeriod is used when neither the request nor configuration names one.
var DefaultPeriod = Period{AcademicYear: "2023-2024", Semester: SemesterFirst}

// String renders the period as "2023-2024/1st".
func (p Period) String() string {
	return p.AcademicYear + "/" + p.Semester
}

// IsZero reports whether both parts are empty.
func (p Period) IsZero() bool {
	return p.AcademicYear == "" && p.Semester == ""
}

// Or returns p when set, otherwise the fallback.
func (p Period) Or(fallback Period) Period {
	if p.IsZero() {
		return fallback
	}
	return p
}

// Validate checks the academic year is "YYYY-YYYY" spanning consecutive years
// and the semester is one of the known values.
func (p Period) Validate() error {
	parts := strings.Split(p.AcademicYear, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		return fmt.Errorf("academic year %q must look like 2023-2024", p.AcademicYear)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("academic year %q: %w", p.AcademicYear, err)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("academic year %q: %w", p.AcademicYear, err)
	}
	if end != start+1 {
		return fmt.Errorf("academic year %q must span consecutive years", p.AcademicYear)
	}
	switch p.Semester {
	case SemesterFirst, SemesterSecond, SemesterSummer:
		return nil
	default:
		return fmt.Errorf("semester %q must be one of %s, %s, %s", p.Semester, SemesterFirst, SemesterSecond, SemesterSummer)
	}
}
