package main

import "github.com/k1LoW/scenery/cmd"

func main() {
	cmd.Execute()
}
