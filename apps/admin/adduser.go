package main

import (
	"context"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	"github.com/ElabeidiTech/LearnHub-sub000/core/user"
)

// addUser updates or creates an approved user.User
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	found := err == nil
	if err != nil && !core.IsNotFound(err) {
		return err
	}

	now := core.Now()
	if !found {
		usr = user.User{Email: email, CreatedAt: now}
	}
	usr.FullName = name
	usr.Role = role
	usr.Status = user.StatusApproved
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if found {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
