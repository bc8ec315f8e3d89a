package main

import "github.com/fes-tools/landrecon/cmd"

func main() {
	cmd.Execute()
}
