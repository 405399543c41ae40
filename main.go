package main

import (
	"log/slog"
	"os"

	"github.com/BioHazard786/sensorlink/cmd"
	"github.com/BioHazard786/sensorlink/internal/logging"
)

func main() {
	// Errors only by default; the terminal belongs to the UI
	closeLog := logging.Init(slog.LevelError)
	code := cmd.Execute()
	closeLog()
	os.Exit(code)
}
