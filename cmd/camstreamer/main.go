package main

import "github.com/bryanchriswhite/CamStreamer/cmd/camstreamer/commands"

func main() {
	commands.Execute()
}
