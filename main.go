package main

import (
	"github.com/axellelanca/shortly/cmd"
	_ "github.com/axellelanca/shortly/cmd/cli"
	_ "github.com/axellelanca/shortly/cmd/server"
)

func main() {
	cmd.Execute()
}
