package main

import "github.com/compras-gov/dispensa-guard/internal/cli"

func main() {
	cli.Execute()
}
