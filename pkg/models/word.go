package models

import (
	"fmt"
	"strings"
)

// Grade is the school-year bucket a word belongs to
type Grade string

const (
	Grade1 Grade = "중1"
	Grade2 Grade = "중2"
	Grade3 Grade = "중3"
)

// Grades lists every grade in ascending order
var Grades = []Grade{Grade1, Grade2, Grade3}

// ParseGrade accepts the Korean label ("중2") or a bare digit ("2")
func ParseGrade(s string) (Grade, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "1", string(Grade1):
		return Grade1, nil
	case "2", string(Grade2):
		return Grade2, nil
	case "3", string(Grade3):
		return Grade3, nil
	}
	return "", fmt.Errorf("unknown grade %q", s)
}

// Valid reports whether g is one of the known grades
func (g Grade) Valid() bool {
	for _, known := range Grades {
		if g == known {
			return true
		}
	}
	return false
}

// Word represents an English word to be learned
type Word struct {
	ID                     string `json:"id"`
	Term                   string `json:"term" validate:"required"`
	Pronunciation          string `json:"pronunciation,omitempty"`
	PartOfSpeech           string `json:"partOfSpeech" validate:"required"`
	Meaning                string `json:"meaning" validate:"required"`
	ExampleSentence        string `json:"exampleSentence" validate:"required"`
	ExampleSentenceMeaning string `json:"exampleSentenceMeaning,omitempty"`
	Grade                  Grade  `json:"gradeLevel" validate:"required"`
	IsCustom               bool   `json:"isCustom,omitempty"`
}
