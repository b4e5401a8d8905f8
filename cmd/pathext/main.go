package main

import "github.com/contriboss/pathext-go/cmd/pathext/internal"

func main() {
	internal.Execute()
}
