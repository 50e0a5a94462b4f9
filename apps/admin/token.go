package main

import (
	"fmt"

	echoapi "github.com/cmeonline/enrollments/apps/api/echo"
)

// token prints a signed API token for a calling service.
func (cli *commandLine) token(subject, uname, email string, staff bool) error {
	claims := echoapi.NewClaims(cli.conf, subject, uname, email, staff)
	token, err := echoapi.GenerateToken(claims, cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
