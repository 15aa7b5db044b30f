package main

import "github.com/alfarkas/basic-contract-interaction/cmd/product-cli/cmd"

func main() {
	cmd.Execute()
}
