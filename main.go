package main

import (
	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/cli"
)

func main() {
	cli.Execute()
}
