// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "dexdump",
		Short: "A DEX-parser built for speed and malware-analysis in mind.",
	}
	root.AddCommand(newDumpCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the dexdump version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("You are using version %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
