package main

import (
	"context"
	"fmt"
	"os"

	"coach-agent/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(nil).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
