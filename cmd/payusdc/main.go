package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if err := Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
