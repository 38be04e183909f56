// Command chitchat is the command-line front end of the chitchat ledger.
package main

import (
	"os"

	"github.com/roach88/chitchat/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
