package main

import (
	"os"

	"git.sr.ht/~jakintosh/fbclient/cmd/fbclient/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
