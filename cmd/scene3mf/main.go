package main

import "github.com/philipparndt/scene3mf/internal/cmd"

func main() {
	cmd.Parse()
}
