package main

import "github.com/LLIEPJIOK/hermes/internal/cli"

func main() {
	cli.Execute()
}
