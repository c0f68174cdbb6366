// Command jettag trains quantum and classical jet-tagging models.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
