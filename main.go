package main

import (
	"log/slog"

	"github.com/Asmer72582/upscholar-live/cmd"
	"github.com/Asmer72582/upscholar-live/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init(slog.LevelError)
	cmd.Execute()
}
