package main

import "github.com/educreche/notify-gateway/cmd"

func main() {
	cmd.Execute()
}
