package main

import "github.com/tillerhq/tiller/internal/cli"

func main() {
	cli.Execute()
}
