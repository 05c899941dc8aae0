// bridgectl resolves native handles through a bridge context and reports
// handle cache statistics.
package main

import (
	"os"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
