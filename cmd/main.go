package main

import "autoqa/backend/internal/cli"

func main() {
	cli.Execute()
}
