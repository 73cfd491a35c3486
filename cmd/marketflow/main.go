package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "marketflow",
		Usage:                 "Run marketing automation flows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunCommand(),
			APICommand(),
			ValidateCommand(),
			EmitCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
