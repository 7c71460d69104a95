package main

import (
	"os"

	"github.com/linkhub/linkhub/internal/cli"
)

func main() {
	cli.InitRoot()
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
