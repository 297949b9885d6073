package console

import "github.com/chzyer/readline"

func Prompt(question string) (string, error) {
	rl, err := readline.New(question)
	if err != nil {
		return "", err
	}
	return rl.Readline()
}
