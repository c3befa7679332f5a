package main

import "rackhost.audio/cli/internal/interfaces/cli"

func main() {
	cli.Execute()
}
