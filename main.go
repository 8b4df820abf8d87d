package main

import "github.com/yankdl/yank/cmd"

func main() {
	cmd.Execute()
}
