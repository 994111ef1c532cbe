package main

import "github.com/praevisio/vigilance/cmd/praevisio/cmd"

func main() {
	cmd.Execute()
}
