package main

import "github.com/synquot/synquot-cli/cmd"

func main() {
	cmd.Execute()
}
