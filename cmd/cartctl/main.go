// Command cartctl drives one cart session against the backend.
//
//	cartctl -email a@b.co -password secret login
//	cartctl -token $TOKEN add 12 2
//	cartctl -token $TOKEN show
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/backend"
	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

const usage = `usage: cartctl [flags] <command> [args]

commands:
  register <username>       create an account for -email, -password and -phone
  login                     print a bearer token for -email and -password
  show                      fetch and print the cart
  add <product> <quantity>  add quantity of a product
  update <product> <qty>    set the quantity of a line item
  remove <product>          remove a line item
  clear                     empty the cart
  checkout                  place an order from the cart
`

// slogNotifier prints alerts as log records.
type slogNotifier struct{}

func (slogNotifier) Notify(severity cart.Severity, message string) {
	level := slog.LevelInfo
	switch severity {
	case cart.SeverityWarning:
		level = slog.LevelWarn
	case cart.SeverityError:
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, message, slog.String("severity", string(severity)))
}

func main() {
	var (
		backendURL string
		token      string
		email      string
		password   string
		phone      string
		timeout    time.Duration
	)

	flag.StringVar(&backendURL, "backend-url", "", "backend REST API base URL (or API_URL env)")
	flag.StringVar(&token, "token", "", "bearer token (or KART_TOKEN env)")
	flag.StringVar(&email, "email", "", "login email")
	flag.StringVar(&password, "password", "", "login password")
	flag.StringVar(&phone, "phone", "", "phone number for register, e.g. +15551234567")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "backend request timeout")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if backendURL == "" {
		backendURL = os.Getenv("API_URL")
	}
	if token == "" {
		token = os.Getenv("KART_TOKEN")
	}
	if backendURL == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	client, err := backend.New(backend.Config{BaseURL: backendURL, Timeout: timeout}, auth.NewTokenStore(token), nil)
	if err != nil {
		slog.Error("create backend client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if flag.Arg(0) == "register" {
		if flag.NArg() != 2 {
			slog.Error("register: expected <username>")
			os.Exit(2)
		}
		userID, err := client.Register(ctx, backend.Registration{
			Username:    flag.Arg(1),
			Email:       email,
			Password:    password,
			PhoneNumber: phone,
		})
		if err != nil {
			slog.Error("register failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Println(userID)
		return
	}

	if err := run(ctx, client, flag.Arg(0), flag.Args()[1:], backend.Credentials{Email: email, Password: password}); err != nil {
		slog.Error("cartctl failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, client *backend.Client, cmd string, args []string, creds backend.Credentials) error {
	if cmd == "login" {
		token, err := client.Login(ctx, creds)
		if err != nil {
			return errors.Wrap(err, "login")
		}
		fmt.Println(token)
		return nil
	}

	s, err := cart.NewSynchronizer(client, client, cart.Options{Notifier: slogNotifier{}})
	if err != nil {
		return err
	}

	switch cmd {
	case "show":
		err = s.Fetch(ctx)
	case "add", "update":
		if len(args) != 2 {
			return errors.Errorf("%s: expected <product> <quantity>", cmd)
		}
		quantity, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return errors.Wrapf(convErr, "%s: parse quantity", cmd)
		}
		if cmd == "add" {
			err = s.AddItem(ctx, args[0], quantity)
		} else {
			err = s.UpdateItem(ctx, args[0], quantity)
		}
	case "remove":
		if len(args) != 1 {
			return errors.New("remove: expected <product>")
		}
		err = s.RemoveItem(ctx, args[0])
	case "clear":
		err = s.Clear(ctx)
	case "checkout":
		var receipt *cart.Receipt
		if receipt, err = s.Checkout(ctx); err == nil {
			fmt.Println(receipt.OrderID)
		}
		return err
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}

	// Mutations only know the touched line; show the whole cart afterwards.
	if cmd != "show" {
		if err := s.Fetch(ctx); err != nil {
			return err
		}
	}
	return printCart(s.Snapshot())
}

func printCart(snap cart.Snapshot) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tSUBTOTAL")
	for _, li := range snap.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", li.ProductID, li.DisplayName(), li.Quantity, li.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\tTOTAL\t%s\n", snap.Total().StringFixed(2))
	return tw.Flush()
}
