package main

import "voice-forms-go/internal/cli"

func main() {
	cli.Execute()
}
