package main

import (
	"github.com/berfenger/dinrelay2mqtt/internal/cmd"
)

func main() {
	cmd.Execute()
}
