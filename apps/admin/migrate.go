package main

import (
	"fmt"

	"github.com/acadamier/backend/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: migrate up|up-by-one|up-to VERSION|down|down-to VERSION|redo|reset|status|version|create NAME [go|sql]|fix")
		return errHelp
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}
