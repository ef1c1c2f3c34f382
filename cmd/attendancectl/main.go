package main

import "attendance-kiosk/internal/cli"

func main() {
	cli.Execute()
}
