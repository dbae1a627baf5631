package main

import "github.com/fahrprobe/fahrprobe-cli/internal/cli"

func main() {
	cli.Execute()
}
