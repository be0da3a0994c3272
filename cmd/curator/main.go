package main

import (
	"os"
)

func main() {
	initHelp(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		// API keys are scrubbed from the message before printing
		outputError(os.Stderr, err)
		os.Exit(1)
	}
}
