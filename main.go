package main

import "github.com/chxlky/trello-citydash/cmd"

func main() {
	cmd.Execute()
}
