package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

const maxQuestionLength = 4000

var errQuit = errors.New("quit")

// promptForQuestion asks for the next chat message. Ctrl-C, "exit" and
// "quit" end the session with errQuit.
func promptForQuestion() (string, error) {
	var question string
	prompt := &survey.Input{
		Message: "You:",
		Help:    "Ask about CSE companies, prices, trade summaries or report analyses.",
	}
	err := survey.AskOne(prompt, &question, survey.WithValidator(validateQuestion))
	if errors.Is(err, terminal.InterruptErr) {
		return "", errQuit
	}
	if err != nil {
		return "", err
	}
	question = strings.TrimSpace(question)
	switch strings.ToLower(question) {
	case "exit", "quit":
		return "", errQuit
	}
	return question, nil
}

func validateQuestion(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("invalid input type")
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if len(str) > maxQuestionLength {
		return fmt.Errorf("question too long (max %d characters)", maxQuestionLength)
	}
	return nil
}

// confirm asks a yes/no question, defaulting to no.
func confirm(message string) (bool, error) {
	var ok bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	if errors.Is(err, terminal.InterruptErr) {
		return false, nil
	}
	return ok, err
}
