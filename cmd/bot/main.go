// Command bot runs the wedding LINE bot.
package main

import (
	"log/slog"
	"os"
)

func main() {
	err := run()
	if err == nil {
		return
	}
	slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("wedding bot stopped", "error", err)
	os.Exit(1)
}
