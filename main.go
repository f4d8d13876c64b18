package main

import "davhammer/cmd"

func main() {
	cmd.Execute()
}
