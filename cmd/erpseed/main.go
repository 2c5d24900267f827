// Command erpseed provisions ERP/CRM seed data into a site database.
package main

import (
	"context"
	"os"

	"github.com/roach88/erpseed/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
