package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) seed(ctx context.Context) error {
	if err := cli.memberSvc.SeedRoles(ctx); err != nil {
		return err
	}
	years, err := cli.memberSvc.EnsureSchoolYears(ctx)
	if err != nil {
		return err
	}
	for _, sy := range years {
		fmt.Printf("school year %s\n", sy.Range)
	}
	return nil
}

func (cli *commandLine) createYear(ctx context.Context, year int) error {
	sy, err := cli.memberSvc.CreateSchoolYear(ctx, year)
	if err != nil {
		return err
	}
	fmt.Printf("created school year %s\n", sy.Range)
	return nil
}
