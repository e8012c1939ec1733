package main

import (
	"fmt"
	"os"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "hostbot: fatal: %v\n", r)
			os.Exit(1)
		}
	}()
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
