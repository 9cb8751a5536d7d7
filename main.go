package main

import "github.com/solo-io/cluster-stats/cmd"

func main() {
	cmd.Execute()
}
