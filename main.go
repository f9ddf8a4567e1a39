package main

import "github.com/robalobadob/puzzlequest/internal/cli"

func main() {
	cli.Execute()
}
