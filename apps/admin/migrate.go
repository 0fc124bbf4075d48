package main

import (
	"errors"

	"github.com/ElabeidiTech/LearnHub-sub000/storage/database"
)

var (
	runMigrationsFunc = database.RunMigrations // mockable

	errNoDatabase = errors.New("migrations need the postgres database engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return runMigrationsFunc(cli.db, args[0], args[1:]...)
}
