package main

import "backend-yatube/cmd/yatubectl/commands"

func main() {
	commands.Execute()
}
