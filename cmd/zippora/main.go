// Command zippora drives the client core from a terminal. Every invocation
// restores the persisted session, runs one command and exits.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/app"
	member "github.com/ovaphlow/pitchfork/zippora-client-go/internal/member/entity"
	"github.com/ovaphlow/pitchfork/zippora-client-go/internal/session"
	"github.com/ovaphlow/pitchfork/zippora-client-go/pkg/utilities"
)

var errUsage = errors.New("usage")

const usage = `usage: zippora <command> [flags]

commands:
  status                         show session state and cached data
  login -email|-phone -password  log in
  logout                         log out and forget saved credentials
  refresh                        reload profile, apartments and lockers
  profile [-nick -first -last -email -phone -address -apt -city -state -zip]
  household add|remove NAME
  search ZIPCODE                 find apartments by zipcode
  units APARTMENT_ID
  subscribe APARTMENT_ID UNIT_ID ZIPCODE
  unsubscribe APARTMENT_ID
  scan TEXT                      bind through a scanned QR code
  logs                           store history
  vcode EMAIL                    send a registration code
  register -first -last -email [-phone] -password -confirm -vcode
  forgot EMAIL                   send a password reset code
  reset -member -password -confirm -vcode
  passwd -old -new -confirm
`

func main() {
	_ = godotenv.Load()

	cfg := utilities.ConfigFromEnv()
	// stdout belongs to command output
	cfg.Output = utilities.OutputStderr
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Level = "warn"
	}
	lg, err := utilities.Init(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], lg.Sugar(), os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, logger *zap.SugaredLogger, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	a, err := app.New(ctx, app.ConfigFromEnv(), logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.Close()

	res, err := a.Start(ctx)
	if err != nil {
		fmt.Fprintln(stderr, session.UserMessage(err))
	}
	if res.PromptReview {
		fmt.Fprintln(stderr, "Enjoying Zippora? Please leave us a review.")
	}

	err = dispatch(ctx, a, args[0], args[1:], stdout, stderr)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprint(stderr, usage)
		return 2
	default:
		fmt.Fprintln(stderr, session.UserMessage(err))
		return 1
	}
}

func dispatch(ctx context.Context, a *app.App, cmd string, args []string, out, errOut io.Writer) error {
	switch cmd {
	case "status":
		return printJSON(out, map[string]any{"state": a.Session.State().String(), "cache": a.Cache.Snapshot()})
	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		phone := fs.String("phone", "", "account phone")
		password := fs.String("password", "", "password")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		err := a.Session.Login(ctx, session.LoginRequest{Email: *email, Phone: *phone, Password: session.HashPassword(*password)})
		if err != nil {
			return err
		}
		return printJSON(out, map[string]string{"state": a.Session.State().String(), "memberId": a.Session.MemberID()})
	case "logout":
		return a.Session.Logout(ctx)
	case "refresh":
		if err := a.Cache.Refresh(ctx); err != nil {
			return err
		}
		return printJSON(out, a.Cache.Snapshot())
	case "profile":
		return profile(ctx, a, args, out)
	case "household":
		if len(args) != 2 {
			return errUsage
		}
		var err error
		switch args[0] {
		case "add":
			err = a.Cache.AddHouseholdMember(ctx, args[1])
		case "remove":
			err = a.Cache.RemoveHouseholdMember(ctx, args[1])
		default:
			return errUsage
		}
		if err != nil {
			return err
		}
		p, _ := a.Cache.Profile()
		return printJSON(out, p.HouseholdMembers)
	case "search":
		if len(args) != 1 {
			return errUsage
		}
		found, err := a.Cache.SearchApartments(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(out, found)
	case "units":
		if len(args) != 1 {
			return errUsage
		}
		units, err := a.Cache.FetchUnits(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(out, units)
	case "subscribe":
		if len(args) != 3 {
			return errUsage
		}
		// the address comes from the search results, which do not outlive a run
		if _, err := a.Cache.SearchApartments(ctx, args[2]); err != nil {
			return err
		}
		res, err := a.Cache.SubscribeToApartment(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if res.AddressErr != nil {
			fmt.Fprintln(errOut, "subscribed, but the apartment address could not be copied to your profile")
		}
		return printJSON(out, res)
	case "unsubscribe":
		if len(args) != 1 {
			return errUsage
		}
		if err := a.Cache.UnsubscribeApartment(ctx, args[0]); err != nil {
			return err
		}
		return printJSON(out, a.Cache.Apartments())
	case "scan":
		if len(args) != 1 {
			return errUsage
		}
		if err := a.Cache.ScanQRCode(ctx, args[0]); err != nil {
			return err
		}
		return printJSON(out, a.Cache.Apartments())
	case "logs":
		if err := a.Cache.RefreshLogs(ctx); err != nil {
			return err
		}
		return printJSON(out, a.Cache.Logs())
	case "vcode":
		if len(args) != 1 {
			return errUsage
		}
		return a.Session.SendRegisterVcode(ctx, args[0])
	case "register":
		return register(ctx, a, args, out)
	case "forgot":
		if len(args) != 1 {
			return errUsage
		}
		id, err := a.Session.SendForgotPasswordVcode(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(out, map[string]string{"memberId": id})
	case "reset":
		fs := flag.NewFlagSet("reset", flag.ContinueOnError)
		id := fs.String("member", "", "member id from the forgot command")
		password := fs.String("password", "", "new password")
		confirm := fs.String("confirm", "", "new password again")
		vcode := fs.String("vcode", "", "emailed code")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		return a.Session.ResetPassword(ctx, session.ResetPasswordRequest{
			MemberID:        *id,
			Password:        session.HashPassword(*password),
			ConfirmPassword: session.HashPassword(*confirm),
			Vcode:           *vcode,
		})
	case "passwd":
		fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
		old := fs.String("old", "", "current password")
		next := fs.String("new", "", "new password")
		confirm := fs.String("confirm", "", "new password again")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		return a.Session.ChangePassword(ctx, session.HashPassword(*old), session.HashPassword(*next), session.HashPassword(*confirm))
	default:
		return errUsage
	}
}

func profile(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	var patch member.ProfilePatch
	fields := map[string]**string{
		"nick":    &patch.NickName,
		"first":   &patch.FirstName,
		"last":    &patch.LastName,
		"email":   &patch.Email,
		"phone":   &patch.Phone,
		"address": &patch.AddressLine1,
		"apt":     &patch.AddressLine2,
		"city":    &patch.City,
		"state":   &patch.State,
		"zip":     &patch.Zipcode,
	}
	for name, dst := range fields {
		fs.Func(name, "set "+name, func(v string) error {
			*dst = &v
			return nil
		})
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if !patch.Empty() {
		if err := a.Cache.UpdateProfile(ctx, patch); err != nil {
			return err
		}
	} else if err := a.Cache.RefreshProfile(ctx); err != nil {
		return err
	}
	p, _ := a.Cache.Profile()
	return printJSON(out, p)
}

func register(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "email")
	phone := fs.String("phone", "", "phone")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password again")
	vcode := fs.String("vcode", "", "emailed code")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	err := a.Session.Register(ctx, session.RegisterRequest{
		FirstName:       *first,
		LastName:        *last,
		Email:           *email,
		Phone:           *phone,
		Password:        session.HashPassword(*password),
		ConfirmPassword: session.HashPassword(*confirm),
		Vcode:           *vcode,
	})
	if err != nil {
		return err
	}
	return printJSON(out, map[string]string{"state": a.Session.State().String(), "memberId": a.Session.MemberID()})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
