package main

import "github.com/stevehiehn/acttest/cmd"

func main() {
	cmd.Execute()
}
