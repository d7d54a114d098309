package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/openclaw/dashboard/cli"
)

func main() {
	// A .env next to the binary's working directory supplies DASHBOARD_*
	// and MINIMAX_* variables. Real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	var rootCmd cli.RootCmd
	err := rootCmd.Command().Invoke().WithOS().Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
