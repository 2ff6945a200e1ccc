package main

import "github.com/jfmyers9/airwave/cmd"

func main() {
	cmd.Execute()
}
