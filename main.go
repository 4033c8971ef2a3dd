package main

import "github.com/code-sleuth/ike-wp/cmd"

func main() {
	cmd.Execute()
}
