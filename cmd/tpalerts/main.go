package main

import "tpalerts/internal/cli"

func main() {
	cli.Execute()
}
