package main

import "github.com/bidsquery/bidsquery/cmd"

func main() {
	cmd.Execute()
}
