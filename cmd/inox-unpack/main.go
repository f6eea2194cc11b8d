package main

import "github.com/oshokin/inox-unpack/cmd/inox-unpack/cmd"

func main() {
	cmd.Execute()
}
