package main

import "github.com/ogulcanaydogan/credit-monitor/internal/cli"

func main() {
	cli.Execute()
}
