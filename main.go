package main

import "songrelay/cmd"

func main() {
	cmd.Execute()
}
