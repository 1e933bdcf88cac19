package main

import "github.com/oshokin/transfer-bundle/cmd/bundle-verifier/cmd"

func main() {
	cmd.Execute()
}
