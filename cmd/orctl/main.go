package main

import "github.com/EmOne/openremote/cmd/orctl/cmd"

func main() {
	cmd.Execute()
}
