package main

import "github.com/jackleland/autospice/cmd"

func main() {
	cmd.Execute()
}
