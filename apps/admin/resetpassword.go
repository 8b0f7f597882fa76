package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	if err := cli.accountSvc.SetPassword(ctx, email, pwd); err != nil {
		return err
	}
	fmt.Printf("password updated for %s\n", email)
	return nil
}

func (cli *commandLine) invite(ctx context.Context, email string) error {
	if err := cli.accountSvc.TriggerPasswordReset(ctx, email); err != nil {
		return err
	}
	fmt.Printf("password reset link sent to %s\n", email)
	return nil
}
