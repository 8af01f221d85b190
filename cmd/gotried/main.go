package main

import (
	"github.com/LeJamon/gotrie/internal/cli"
)

func main() {
	cli.Execute()
}
