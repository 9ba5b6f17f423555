package main

import "github.com/vibast-solutions/ms-go-settlements/cmd"

func main() {
	cmd.Execute()
}
