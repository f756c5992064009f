package main

import "os"

func main() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(regenerateCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
