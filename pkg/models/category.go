package models

import (
	"strings"

	"golang.org/x/text/cases"
)

type Category string

const (
	CategoryMeetings      Category = "Meetings"
	CategoryExams         Category = "Exams"
	CategoryClasses       Category = "Classes"
	CategoryErrands       Category = "Errands"
	CategoryPersonalGoals Category = "Personal Goals"
	CategoryWorkProjects  Category = "Work Projects"
	CategoryHealthFitness Category = "Health & Fitness"
	CategoryLearning      Category = "Learning"
	CategoryHomeFamily    Category = "Home & Family"
	CategorySpiritual     Category = "Spiritual"
)

const DefaultCategory = CategoryPersonalGoals

var allCategories = []Category{
	CategoryMeetings,
	CategoryExams,
	CategoryClasses,
	CategoryErrands,
	CategoryPersonalGoals,
	CategoryWorkProjects,
	CategoryHealthFitness,
	CategoryLearning,
	CategoryHomeFamily,
	CategorySpiritual,
}

// Short forms accepted from tool callers.
var categoryAliases = map[string]Category{
	"work":     CategoryWorkProjects,
	"health":   CategoryHealthFitness,
	"fitness":  CategoryHealthFitness,
	"home":     CategoryHomeFamily,
	"family":   CategoryHomeFamily,
	"personal": CategoryPersonalGoals,
	"goals":    CategoryPersonalGoals,
	"meeting":  CategoryMeetings,
	"exam":     CategoryExams,
	"class":    CategoryClasses,
	"errand":   CategoryErrands,
}

// Fold returns the case-folded form of s used for label comparisons and search.
// A Caser keeps state, so each call gets its own.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// AllCategories returns every category in display order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func (c Category) Valid() bool {
	for _, v := range allCategories {
		if c == v {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// LookupCategory matches s case-insensitively against the labels and their
// short forms.
func LookupCategory(s string) (Category, bool) {
	key := Fold(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	for _, c := range allCategories {
		if Fold(string(c)) == key {
			return c, true
		}
	}
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	return "", false
}

// ParseCategory is LookupCategory with the default as fallback.
func ParseCategory(s string) Category {
	if c, ok := LookupCategory(s); ok {
		return c
	}
	return DefaultCategory
}
