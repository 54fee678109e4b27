package main

import "n8npipe/cmd"

func main() {
	cmd.Execute()
}
