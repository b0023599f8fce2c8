package main

import "os"

func main() {
	if err := CmdRun.Execute(); err != nil {
		os.Exit(1)
	}
}
