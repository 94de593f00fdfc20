package models

import "strings"

// Category is one of the fixed IPCR evaluation buckets a document is classified into.
type Category string

const (
	CategorySyllabus     Category = "syllabus"
	CategoryCourseGuide  Category = "courseGuide"
	CategorySLM          Category = "slm"
	CategoryGradingSheet Category = "gradingSheet"
	CategoryTOS          Category = "tos"
)

type categoryInfo struct {
	label         string
	defaultTarget int
}

var categoryTable = map[Category]categoryInfo{
	CategorySyllabus:     {label: "Syllabus", defaultTarget: 4},
	CategoryCourseGuide:  {label: "Course Guide", defaultTarget: 4},
	CategorySLM:          {label: "SLM", defaultTarget: 10},
	CategoryGradingSheet: {label: "Grading Sheet", defaultTarget: 0},
	CategoryTOS:          {label: "TOS", defaultTarget: 0},
}

// labelIndex maps every accepted display label, including long-form aliases, to its category.
var labelIndex = map[string]Category{
	"Syllabus":                CategorySyllabus,
	"Course Guide":            CategoryCourseGuide,
	"SLM":                     CategorySLM,
	"Learning Material":       CategorySLM,
	"Grading Sheet":           CategoryGradingSheet,
	"TOS":                     CategoryTOS,
	"Table of Specifications": CategoryTOS,
}

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{
		CategorySyllabus,
		CategoryCourseGuide,
		CategorySLM,
		CategoryGradingSheet,
		CategoryTOS,
	}
}

// Valid reports whether c belongs to the closed taxonomy.
func (c Category) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

// Label returns the canonical display label, or an empty string for unknown categories.
func (c Category) Label() string {
	return categoryTable[c].label
}

// DefaultTarget is the target reported for a category that has no stored counter yet.
func (c Category) DefaultTarget() int {
	return categoryTable[c].defaultTarget
}

// CategoryFromLabel converts a classifier/display label into a category.
// Matching is exact apart from surrounding whitespace.
func CategoryFromLabel(label string) (Category, bool) {
	c, ok := labelIndex[strings.TrimSpace(label)]
	return c, ok
}

// ParseCategory accepts an internal key.
func ParseCategory(key string) (Category, bool) {
	c := Category(strings.TrimSpace(key))
	if !c.Valid() {
		return "", false
	}
	return c, true
}
