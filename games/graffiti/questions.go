/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package graffiti

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Question is one multiple-choice quiz item.
type Question struct {
	ID           int      `json:"id" mapstructure:"id"`
	Text         string   `json:"question" mapstructure:"question"`
	Options      []string `json:"options" mapstructure:"options"`
	CorrectIndex int      `json:"correctIndex" mapstructure:"correctIndex"`
}

func (q Question) IsCorrect(option int) bool {
	return option == q.CorrectIndex
}

func (q Question) Validate() error {
	switch {
	case q.Text == "":
		return fmt.Errorf("%w: question %d has no text", ErrInvalidQuestion, q.ID)
	case len(q.Options) < 2:
		return fmt.Errorf("%w: question %d needs at least two options", ErrInvalidQuestion, q.ID)
	case q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options):
		return fmt.Errorf("%w: question %d has correct index %d out of range", ErrInvalidQuestion, q.ID, q.CorrectIndex)
	}
	return nil
}

// Shuffled returns a shuffled copy of qs. The input is left untouched.
func Shuffled(qs []Question, r *rand.Rand) []Question {
	out := slices.Clone(qs)
	for i := len(out) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// DefaultQuestions returns the built-in general trivia bank.
func DefaultQuestions() []Question {
	return []Question{
		{1, "What is the capital of France?", []string{"London", "Berlin", "Paris", "Madrid"}, 2},
		{2, "Which planet is known as the Red Planet?", []string{"Venus", "Mars", "Jupiter", "Saturn"}, 1},
		{3, "Who painted the Mona Lisa?", []string{"Van Gogh", "Picasso", "Da Vinci", "Michelangelo"}, 2},
		{4, "What is the largest ocean on Earth?", []string{"Atlantic", "Indian", "Arctic", "Pacific"}, 3},
		{5, "How many continents are there?", []string{"5", "6", "7", "8"}, 2},
		{6, "What is the chemical symbol for gold?", []string{"Go", "Gd", "Au", "Ag"}, 2},
		{7, "Which animal is the largest mammal?", []string{"Elephant", "Blue Whale", "Giraffe", "Hippopotamus"}, 1},
		{8, "What year did World War II end?", []string{"1943", "1944", "1945", "1946"}, 2},
		{9, "What is the hardest natural substance?", []string{"Gold", "Iron", "Diamond", "Platinum"}, 2},
		{10, "Who wrote 'Romeo and Juliet'?", []string{"Dickens", "Shakespeare", "Austen", "Hemingway"}, 1},
		{11, "What is the smallest country in the world?", []string{"Monaco", "Vatican City", "San Marino", "Liechtenstein"}, 1},
		{12, "How many legs does a spider have?", []string{"6", "8", "10", "12"}, 1},
		{13, "What is the main ingredient in guacamole?", []string{"Tomato", "Avocado", "Onion", "Pepper"}, 1},
		{14, "Which element has the chemical symbol 'O'?", []string{"Osmium", "Oxygen", "Oganesson", "Gold"}, 1},
		{15, "What is the fastest land animal?", []string{"Lion", "Cheetah", "Horse", "Greyhound"}, 1},
		{16, "In which city is the Eiffel Tower located?", []string{"Rome", "London", "Paris", "Berlin"}, 2},
		{17, "What gas do plants absorb from the atmosphere?", []string{"Oxygen", "Nitrogen", "Carbon Dioxide", "Hydrogen"}, 2},
		{18, "How many colors are in a rainbow?", []string{"5", "6", "7", "8"}, 2},
		{19, "What is the largest planet in our solar system?", []string{"Saturn", "Neptune", "Jupiter", "Uranus"}, 2},
		{20, "Which country gifted the Statue of Liberty to the USA?", []string{"England", "France", "Germany", "Spain"}, 1},
	}
}
