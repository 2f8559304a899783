package main

import "github.com/vietddude/vinspect/internal/cli"

func main() {
	cli.Execute()
}
