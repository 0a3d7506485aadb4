package main

import "github.com/mongohaul/mongohaul/internal/cli"

func main() {
	cli.Execute()
}
