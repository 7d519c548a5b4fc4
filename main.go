package main

import "cogniview/cmd"

func main() {
	cmd.Execute()
}
