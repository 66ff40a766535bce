package main

import "github.com/kozaktomas/facesync/cmd"

func main() {
	cmd.Execute()
}
