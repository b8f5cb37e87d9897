package main

import "github.com/soocke/pixel-aim-go/cmd"

func main() {
	cmd.Execute()
}
