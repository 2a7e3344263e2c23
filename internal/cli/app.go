// Package cli implements the administration command line: creating admin
// accounts directly in the database and listing users.
//
// Usage:
//
//	cli create-admin [-email <address>] [server flags]
//	cli list-users [server flags]
package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/flagx"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/services"
)

var (
	ErrUsage            = errors.New("usage: cli create-admin [-email <address>] | cli list-users")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

type UserService interface {
	CreateAdmin(ctx context.Context, email, password string) (services.Reply, error)
	List(ctx context.Context) ([]models.UserSummary, error)
}

type App struct {
	users UserService
	in    *bufio.Reader
	out   io.Writer
}

func NewApp(users UserService, in io.Reader, out io.Writer) *App {
	return &App{users: users, in: bufio.NewReader(in), out: out}
}

// Run executes the subcommand named by args[0]. Flags of other components
// may be mixed into args; they are ignored.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	switch args[0] {
	case "create-admin":
		return a.createAdmin(ctx, args[1:])
	case "list-users":
		return a.listUsers(ctx)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, ErrUsage.Error())
		return nil
	}
	return ErrUsage
}

func (a *App) createAdmin(ctx context.Context, args []string) error {
	var email string
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.StringVar(&email, "email", "", "email address of the admin account")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email"})); err != nil {
		return err
	}

	if email == "" {
		var err error
		if email, err = GetSimpleText(a.in, "Email address", a.out); err != nil {
			return err
		}
	}

	password, err := GetPassword("Enter password: ", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	again, err := GetPassword("Repeat password: ", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)

	if !bytes.Equal(password, again) {
		return ErrPasswordMismatch
	}

	reply, err := a.users.CreateAdmin(ctx, email, string(password))
	if err != nil {
		return err
	}
	if !reply.OK() {
		return errors.New(reply.Message)
	}

	fmt.Fprintf(a.out, "Admin account %s created\n", email)
	return nil
}

func (a *App) listUsers(ctx context.Context) error {
	users, err := a.users.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tADMIN\tACTIVATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%t\t%t\n", u.Email, u.IsAdmin, u.Activated)
	}
	return tw.Flush()
}
