package main

import (
	"context"
	"os"

	"github.com/maisonhai3/AI-planning-for-students/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	app := &cli.App{Version: version}
	if err := cli.NewRootCmd(app).ExecuteContext(context.Background()); err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
