package main

import "depctx/internal/cli"

func main() {
	cli.Execute()
}
