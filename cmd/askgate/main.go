package main

import "github.com/askgate-dev/askgate/internal/cli"

func main() {
	cli.Execute()
}
