package main

import (
	"os"

	"github.com/soundprediction/risposta/cmd/risposta"
)

func main() {
	if err := risposta.Execute(); err != nil {
		os.Exit(1)
	}
}
