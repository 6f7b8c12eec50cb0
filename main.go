package main

import "github.com/kozaktomas/image-search/cmd"

func main() {
	cmd.Execute()
}
