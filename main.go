package main

import "github.com/ghyeongl/imgview/cmd"

func main() {
	cmd.Execute()
}
