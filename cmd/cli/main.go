package main

import "github.com/mchmarny/dietpulse/pkg/cli"

func main() {
	cli.Execute()
}
