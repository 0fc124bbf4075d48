package main

import (
	"context"
	"fmt"

	schedsvc "github.com/ElabeidiTech/LearnHub-sub000/services/scheduler"
)

// sweepAttempts runs a single quiz attempt sweep, as the API scheduler does periodically.
func (cli *commandLine) sweepAttempts() error {
	n, err := schedsvc.SweepAttempts(context.Background(), cli.expirer, cli.logger)
	if err != nil {
		return err
	}
	fmt.Printf("%d attempt(s) submitted\n", n)
	return nil
}
