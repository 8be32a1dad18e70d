package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/sjperalta/fintera-cuotas/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
