package main

import "github.com/plaguebrands/ribbit/apps/ribbitd/cmd"

func main() {
	cmd.Execute()
}
