package main

const (
	exitUsage     = 1
	exitExhausted = 2
	exitNoCache   = 3

	exitInterrupted = 130
)

type exitError struct {
	code    int
	message string
	silent  bool
}

func (e exitError) Error() string {
	return e.message
}

func exitSilent(code int) error {
	return exitError{code: code, silent: true}
}

func exitWithMessage(code int, message string) error {
	return exitError{code: code, message: message}
}
