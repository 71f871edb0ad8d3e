package main

import "github.com/JonMunkholm/automationdb/internal/cli"

func main() {
	cli.Execute()
}
