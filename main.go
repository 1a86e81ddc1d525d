package main

import "github.com/MonishPuttu/internhub-chat/cmd"

func main() {
	cmd.Execute()
}
