package main

import (
	"fmt"
	"os"

	"github.com/roach88/tableshard/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, "shardmigrate:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
