package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf       *core.Config
	db         *sql.DB
	out        io.Writer
	validate   *validator.Validate
	translator ut.Translator
	catalogSvc *catalog.Service
	accountSvc *account.Service
	enrollSvc  *enrollment.Service
	mailer     core.EmailService
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)")
	fmt.Fprintln(cli.out, "  addprogram -uuid UUID -title TITLE -org ORG [-courses KEY,KEY] - register or update a program")
	fmt.Fprintln(cli.out, "  addaccount -username USERNAME -org ORG -key EXTERNAL_KEY [-email EMAIL] - create a learner account")
	fmt.Fprintln(cli.out, "  enroll -program UUID [-course KEY] -file FILE.csv [-notify EMAILS] - enroll the learners listed in a CSV file")
	fmt.Fprintln(cli.out, "  linkaccounts -program UUID - link waiting enrollments to existing accounts")
	fmt.Fprintln(cli.out, "  purge -program UUID - delete every enrollment of a program")
	fmt.Fprintln(cli.out, "  token -subject NAME [-username USERNAME] [-email EMAIL] [-staff] - issue an API token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addProgramCmd := flag.NewFlagSet("addprogram", flag.ExitOnError)
	addProgramUUID := addProgramCmd.String("uuid", "", "The program UUID.")
	addProgramTitle := addProgramCmd.String("title", "", "The program title.")
	addProgramOrg := addProgramCmd.String("org", "", "The key of the organization offering the program.")
	addProgramCourses := addProgramCmd.String("courses", "", "Comma separated course keys of the program.")

	addAccountCmd := flag.NewFlagSet("addaccount", flag.ExitOnError)
	addAccountUname := addAccountCmd.String("username", "", "The account username.")
	addAccountEmail := addAccountCmd.String("email", "", "The account email.")
	addAccountOrg := addAccountCmd.String("org", "", "The organization knowing the learner.")
	addAccountKey := addAccountCmd.String("key", "", "The learner's external user key in the organization.")

	enrollCmd := flag.NewFlagSet("enroll", flag.ExitOnError)
	enrollProgram := enrollCmd.String("program", "", "The program UUID.")
	enrollCourse := enrollCmd.String("course", "", "Enroll in this course of the program instead of the program itself.")
	enrollFile := enrollCmd.String("file", "", "CSV file: `student_key,status[,curriculum_uuid]` with a header row.")
	enrollNotify := enrollCmd.String("notify", "", "Comma separated email addresses the import report is sent to.")

	linkCmd := flag.NewFlagSet("linkaccounts", flag.ExitOnError)
	linkProgram := linkCmd.String("program", "", "The program UUID.")

	purgeCmd := flag.NewFlagSet("purge", flag.ExitOnError)
	purgeProgram := purgeCmd.String("program", "", "The program UUID.")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenSubject := tokenCmd.String("subject", "", "The token subject, eg: the calling service name.")
	tokenUname := tokenCmd.String("username", "", "The username to put in the token.")
	tokenEmail := tokenCmd.String("email", "", "The email to put in the token.")
	tokenStaff := tokenCmd.Bool("staff", false, "Grant staff rights (required by the API).")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addprogram":
		if err := addProgramCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addProgramUUID == "" || *addProgramTitle == "" || *addProgramOrg == "" {
			addProgramCmd.Usage()
			return errHelp
		}
		return cli.addProgram(*addProgramUUID, *addProgramTitle, *addProgramOrg, splitList(*addProgramCourses))
	case "addaccount":
		if err := addAccountCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAccountUname == "" || *addAccountOrg == "" || *addAccountKey == "" {
			addAccountCmd.Usage()
			return errHelp
		}
		return cli.addAccount(*addAccountUname, *addAccountEmail, *addAccountOrg, *addAccountKey)
	case "enroll":
		if err := enrollCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *enrollProgram == "" || *enrollFile == "" {
			enrollCmd.Usage()
			return errHelp
		}
		notify, err := core.ParseAddressList(*enrollNotify)
		if err != nil {
			return err
		}
		return cli.enrollFromFile(*enrollProgram, *enrollCourse, *enrollFile, notify)
	case "linkaccounts":
		if err := linkCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *linkProgram == "" {
			linkCmd.Usage()
			return errHelp
		}
		return cli.linkAccounts(*linkProgram)
	case "purge":
		if err := purgeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *purgeProgram == "" {
			purgeCmd.Usage()
			return errHelp
		}
		return cli.purge(*purgeProgram)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenSubject == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenSubject, *tokenUname, *tokenEmail, *tokenStaff)
	default:
		cli.printUsage()
		return errHelp
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	items := strings.Split(s, ",")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}
	return items
}

// validationMessage flattens validator errors into one line.
func (cli *commandLine) validationMessage(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: %s", fe.Field(), fe.Translate(cli.translator))
	}
	return errors.New(strings.Join(msgs, "; "))
}
