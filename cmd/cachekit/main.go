package main

import "github.com/vietddude/cachekit/internal/cli"

func main() {
	cli.Execute()
}
