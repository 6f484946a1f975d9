package main

import (
	"github.com/kevgathuku/server/cmd"
)

func main() {
	cmd.New().Execute()
}
