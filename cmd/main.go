package main

import (
	"os"

	"github.com/dyike/BrokerGo/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
