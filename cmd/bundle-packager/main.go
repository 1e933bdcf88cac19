package main

import "github.com/oshokin/transfer-bundle/cmd/bundle-packager/cmd"

func main() {
	cmd.Execute()
}
