package main

import (
	"context"
	"fmt"

	"github.com/cmeonline/enrollments/core/account"
	"github.com/cmeonline/enrollments/core/catalog"
)

// addProgram registers or updates a catalog.Program
func (cli *commandLine) addProgram(uuid, title, org string, courseKeys []string) error {
	program, err := cli.catalogSvc.Register(context.Background(), cli.validate, catalog.NewProgram{
		UUID:            uuid,
		Title:           title,
		OrganizationKey: org,
		CourseKeys:      courseKeys,
	})
	if err != nil {
		return cli.validationMessage(err)
	}
	fmt.Fprintf(cli.out, "program %s saved with %d course(s)\n", program.UUID, len(program.CourseKeys))
	return nil
}

// addAccount creates an account.Account
func (cli *commandLine) addAccount(uname, email, org, key string) error {
	acc, err := cli.accountSvc.Create(context.Background(), cli.validate, account.NewAccount{
		Username:        uname,
		Email:           email,
		OrganizationKey: org,
		ExternalUserKey: key,
	})
	if err != nil {
		return cli.validationMessage(err)
	}
	fmt.Fprintf(cli.out, "account %d created for %s\n", acc.ID, acc.ExternalUserKey)
	return nil
}
