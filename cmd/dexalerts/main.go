package main

import "dexalerts/internal/cli"

func main() {
	cli.Execute()
}
