package main

import "github.com/oar-cd/launchpad/cmd/root"

func main() {
	root.Execute()
}
