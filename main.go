package main

import "github.com/agentic-research/dvk/cmd"

func main() {
	cmd.Execute()
}
