// Command plugmirror mirrors smart plug data from the live device feed into
// a durable store.
package main

import (
	"fmt"
	"os"

	"github.com/evansbry000/SmartPlugApp/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
