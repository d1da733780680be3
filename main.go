package main

import (
	"github.com/luma/piconats/cmd"
)

func main() {
	cmd.Execute()
}
