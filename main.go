package main

import (
	"github.com/sidkik/scratchpad/cmd"
	"github.com/sidkik/scratchpad/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
