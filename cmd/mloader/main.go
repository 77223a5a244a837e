package main

import (
	"log"

	"github.com/Cjw9000-py/mloader/cmd/mloader/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
