package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/troopconnect/troopconnect/core/account"
	"github.com/troopconnect/troopconnect/core/member"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	memberSvc  member.Service
	accountSvc account.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run goose migration commands (up, up-by-one, up-to, down, down-to, redo, reset, status, version)")
	fmt.Println("  seed - create the default roles and the current and next school years")
	fmt.Println("  createyear -year YEAR - create the school year starting on September 1st of YEAR")
	fmt.Println("  resetpassword -email EMAIL - set an account's password")
	fmt.Println("  invite -email EMAIL - mail a password reset link to an account")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createYearCmd := flag.NewFlagSet("createyear", flag.ContinueOnError)
	createYearName := createYearCmd.Int("year", 0, "The calendar year the school year starts in.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	inviteCmd := flag.NewFlagSet("invite", flag.ContinueOnError)
	inviteEmail := inviteCmd.String("email", "", "The account's email.")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "seed":
		return cli.seed(ctx)
	case "createyear":
		if err := createYearCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createYearName == 0 {
			createYearCmd.Usage()
			return errHelp
		}
		return cli.createYear(ctx, *createYearName)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, string(pwd))
	case "invite":
		if err := inviteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *inviteEmail == "" {
			inviteCmd.Usage()
			return errHelp
		}
		return cli.invite(ctx, *inviteEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}
