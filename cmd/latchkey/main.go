package main

import "github.com/jtmarsh/latchkey/cmd/latchkey/cmd"

func main() {
	cmd.Execute()
}
