package main

import "github.com/serisow/lesocle-kb/cmd"

func main() {
	cmd.Execute()
}
