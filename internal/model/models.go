// Package model defines the data models for the quiz bot.
package model

import (
	"fmt"
	"strings"
)

// OptionCount is the number of alternatives every question carries.
const OptionCount = 4

// Category is one of the fixed question categories.
type Category string

// Question categories offered by the bot.
const (
	CategoryGeneral       Category = "Geral"
	CategoryHistory       Category = "História"
	CategoryGeography     Category = "Geografia"
	CategoryScience       Category = "Ciências"
	CategorySports        Category = "Esportes"
	CategoryEntertainment Category = "Entretenimento"
	CategoryArts          Category = "Arte e Literatura"
	CategoryTechnology    Category = "Tecnologia"
)

// Categories returns every category in menu order.
func Categories() []Category {
	return []Category{
		CategoryGeneral,
		CategoryHistory,
		CategoryGeography,
		CategoryScience,
		CategorySports,
		CategoryEntertainment,
		CategoryArts,
		CategoryTechnology,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory resolves a user-typed category name, ignoring case.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Difficulty is one of the fixed difficulty levels.
type Difficulty string

// Difficulty levels.
const (
	DifficultyEasy   Difficulty = "Fácil"
	DifficultyMedium Difficulty = "Médio"
	DifficultyHard   Difficulty = "Difícil"
)

// Difficulties returns every difficulty from easiest to hardest.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Points returns the score awarded for a correct answer at this difficulty.
func (d Difficulty) Points() int64 {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 3
	case DifficultyHard:
		return 5
	}
	return 0
}

// ParseDifficulty resolves a user-typed difficulty name, ignoring case.
func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.TrimSpace(s)
	for _, d := range Difficulties() {
		if strings.EqualFold(string(d), s) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Question is a validated multiple-choice question.
type Question struct {
	Text         string
	Options      [OptionCount]string
	CorrectIndex int
	Explanation  string
	Category     Category
	Difficulty   Difficulty
	Points       int64
}

// IsCorrect reports whether index selects the right option.
func (q *Question) IsCorrect(index int) bool {
	return index == q.CorrectIndex
}

// CorrectOption returns the text of the right option.
func (q *Question) CorrectOption() string {
	return q.Options[q.CorrectIndex]
}

// Player identifies a chat user taking part in a game.
type Player struct {
	ID   int64
	Name string
}

// RankEntry is a player's cumulative score in the global ranking.
type RankEntry struct {
	PlayerID int64
	Username string
	Points   int64
}
