package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/abflash-io/abflash/cmd/abflash-agent/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
