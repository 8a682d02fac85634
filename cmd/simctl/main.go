package main

import "campaignsim/cmd/simctl/commands"

func main() {
	commands.Execute()
}
