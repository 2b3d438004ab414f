package main

import (
	"log"
	"os"
)

func main() {
	logger := log.New(os.Stderr, "[perflab] ", log.LstdFlags|log.Lmsgprefix)
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		logger.Printf("command failed: %v", err)
		os.Exit(1)
	}
}
