// Command cfgproc inspects how configuration files bind to the libraries
// linked into it and emits the equivalent Go code.
//
// The stock binary links the fixture library only. Projects build their own
// cfgproc by importing their libraries next to the cmd package:
//
//	import (
//		_ "example.com/project/services"
//		"github.com/GoCodeAlone/configprocessor/cmd/cfgproc/cmd"
//	)
//
//	func main() { _ = cmd.NewRootCommand().Execute() }
package main

import (
	"fmt"
	"os"

	"github.com/GoCodeAlone/configprocessor/cmd/cfgproc/cmd"
	_ "github.com/GoCodeAlone/configprocessor/internal/fixtures"
)

func main() {
	rootCmd := cmd.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
