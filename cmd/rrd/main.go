package main

import (
	"fmt"
	"os"

	app "github.com/valter-silva-au/recall-review/internal"
	"github.com/valter-silva-au/recall-review/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	basePath := app.ResolveBasePath()

	var a *app.App
	cli.Bootstrap = func(f cli.GlobalFlags) error {
		if a != nil {
			return nil
		}
		var err error
		a, err = app.NewApp(basePath, app.Options{Mock: f.Mock, APIURL: f.APIURL, Debug: f.Debug})
		return err
	}

	err := cli.Execute()
	if a != nil {
		_ = a.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
