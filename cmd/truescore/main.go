package main

import "github.com/lemon07r/truescore/internal/cli"

func main() {
	cli.Execute()
}
