package game

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinPromptLength = 10
	MaxPromptLength = 500
	MaxAnswerLength = 2000
)

// PromptSuggestions are offered in the create-room form.
var PromptSuggestions = []string{
	"Describe an alien visiting Earth for the first time.",
	"Write a product review for an invention that doesn't exist yet.",
	"Explain quantum physics to a curious five-year-old.",
	"Pitch a startup idea that solves a ridiculous problem.",
	"Describe the perfect day on a planet that isn't Earth.",
}

// ValidatePrompt trims a room prompt and checks its length.
func ValidatePrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	n := utf8.RuneCountInString(prompt)
	switch {
	case n == 0:
		return "", &ValidationError{Kind: ErrInvalidPrompt, Reason: "Please enter a prompt for your room."}
	case n < MinPromptLength:
		return "", &ValidationError{Kind: ErrInvalidPrompt,
			Reason: fmt.Sprintf("Prompt must be at least %d characters.", MinPromptLength)}
	case n > MaxPromptLength:
		return "", &ValidationError{Kind: ErrInvalidPrompt,
			Reason: fmt.Sprintf("Prompt must be %d characters or fewer.", MaxPromptLength)}
	}
	return prompt, nil
}

// ValidateAnswer trims an answer and checks its length.
func ValidateAnswer(answer string) (string, error) {
	answer = strings.TrimSpace(answer)
	n := utf8.RuneCountInString(answer)
	switch {
	case n == 0:
		return "", &ValidationError{Kind: ErrInvalidAnswer, Reason: "Please write an answer before submitting."}
	case n > MaxAnswerLength:
		return "", &ValidationError{Kind: ErrInvalidAnswer,
			Reason: fmt.Sprintf("Answer must be %d characters or fewer.", MaxAnswerLength)}
	}
	return answer, nil
}
