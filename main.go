package main

import "github.com/frahmantamala/property-evaluation/cmd"

func main() {
	cmd.Execute()
}
