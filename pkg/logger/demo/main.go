package main

import (
	"log/slog"

	"github.com/soundprediction/risposta/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    Risposta Colored Logger Demo")
	log.Info("============================================")
	log.Info("")

	log.Debug("Debug message - gray")
	log.Info("Info message - standard color")
	log.Info("answered question - green!")
	log.Info("exported retrieval results - also green!")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("")
	log.Info("Batch progress lines are highlighted in green:")
	log.Info("answered question", "id", "q-0001", "windows", 14, "best_score", 11.2)
	log.Info("answered question", "id", "q-0002", "windows", 6, "best_score", 4.7)
	log.Info("artifacts written", "dir", "./outputs", "questions", 2)

	log.Info("")
	log.Warn("Warnings appear in yellow for attention")
	log.Error("Errors appear in red for immediate visibility")

	log.Info("")
	log.Info("Demo complete!")
}
