package main

import (
	"os"

	"rundown/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
