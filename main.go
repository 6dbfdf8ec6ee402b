package main

import "github.com/marcmoiagese/SpartaClaims/cli"

func main() {
	cli.Execute()
}
