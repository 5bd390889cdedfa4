package main

import (
	"context"

	"goldwatch/cmd/goldwatch/commands"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is fine, everything can come from the config file
	godotenv.Load()
	commands.ExecuteContext(context.Background())
}
