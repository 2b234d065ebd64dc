package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB
	usrRepo   user.Repository
	courseSvc course.Service
	teamSvc   team.Service
	validate  *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) against the database")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-role ROLE] - add or update a user (password prompted)")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  seedcatalog -file FILE - create the categories and tags listed in a YAML file")
	fmt.Println("  snapshot - take an analytics snapshot of every organization")
}

func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", user.RoleStudent, "The user's role: student:, instructor:, admin: or admin:owner.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	seedCatalogCmd := flag.NewFlagSet("seedcatalog", flag.ContinueOnError)
	seedCatalogFile := seedCatalogCmd.String("file", "", "The YAML file listing the categories and tags.")

	switch args[1] {
	case "migrate":
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserRole)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "seedcatalog":
		if err := seedCatalogCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedCatalogFile == "" {
			seedCatalogCmd.Usage()
			return errHelp
		}
		return cli.seedCatalog(*seedCatalogFile)

	case "snapshot":
		return cli.snapshot()

	default:
		cli.printUsage()
		return errHelp
	}
}
