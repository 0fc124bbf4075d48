package main

import (
	"context"
	"log"
	"os"

	"github.com/ElabeidiTech/LearnHub-sub000/apps/container"
	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// migrations are run explicitly through the migrate command
	c, err := container.New(context.Background(), core.NewConfig(), "ADMIN", false)
	if err != nil {
		logger.Fatal(err)
	}

	// start CLI
	cli := commandLine{
		usrRepo: c.UserRepo,
		expirer: c.Quizzes,
		logger:  c.Logger,
	}
	if c.DB != nil {
		cli.db = c.DB.DB
	}
	err = cli.run(os.Args)
	c.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
