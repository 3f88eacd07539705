package main

import (
	"mood-mirror-go/internal/cli"
)

func main() {
	cli.Execute()
}
