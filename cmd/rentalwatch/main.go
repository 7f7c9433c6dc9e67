package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"rentalshop-trusted/internal/aggregator"
	"rentalshop-trusted/internal/client"
	"rentalshop-trusted/internal/config"
	"rentalshop-trusted/internal/domain"
	"rentalshop-trusted/internal/gate"
	"rentalshop-trusted/internal/logger"
	"rentalshop-trusted/internal/monitor"
	"rentalshop-trusted/internal/notify"
	"rentalshop-trusted/internal/service"
	"rentalshop-trusted/internal/session"
)

func main() {
	_ = godotenv.Load()

	app := cli.App{
		Name:  "rentalwatch",
		Usage: "counter terminal for timed game and vehicle rentals",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the terminal configuration file",
				Value:   "config/rentalwatch.yaml",
				EnvVars: []string{"RENTALWATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "session-file",
				Usage:   "where the signed-in session is stored",
				EnvVars: []string{"RENTALWATCH_SESSION_FILE"},
			},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:  "login",
			Usage: "sign in and store the session",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
				&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "read from stdin when omitted", EnvVars: []string{"RENTALWATCH_PASSWORD"}},
			},
			Action: runLogin,
		},
		{
			Name:   "logout",
			Usage:  "forget the stored session",
			Action: runLogout,
		},
		{
			Name:  "watch",
			Usage: "show live countdowns and raise near-end and ended alerts",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "once", Usage: "print one board and exit"},
			},
			Action: runWatch,
		},
		{
			Name:      "cancel",
			Usage:     "cancel a rental inside its cancellation window",
			ArgsUsage: "<rental-id>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "reason"},
			},
			Action: runCancel,
		},
		{
			Name:      "extend",
			Usage:     "add minutes to a rental that is near its end or has ended",
			ArgsUsage: "<rental-id>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "minutes", Aliases: []string{"m"}, Value: domain.MinDurationMinutes},
			},
			Action: runExtend,
		},
		{
			Name:      "complete",
			Usage:     "close an ended rental and record payment",
			ArgsUsage: "<rental-id>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "method", Value: "cash"},
				&cli.Int64Flag{Name: "paid-cents", Usage: "amount collected; defaults to the rental's price", Value: -1},
			},
			Action: runComplete,
		},
	}
	app.RunAndExitOnError()
}

// env is what every command needs: configuration, the session store and a
// backend client authenticated from it.
type env struct {
	cfg      *config.MonitorConfig
	sessions *session.Store
	backend  *client.Client
}

func setup(cctx *cli.Context) (*env, error) {
	cfg, err := config.LoadMonitor(cctx.String("config"))
	if err != nil {
		return nil, err
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	path := cctx.String("session-file")
	if path == "" {
		path = cfg.SessionFile
	}
	if path == "" {
		path = session.DefaultPath()
	}
	sessions := session.NewStore(path)
	if err := sessions.Load(); err != nil {
		return nil, err
	}

	backend := client.New(cfg.BackendURL, sessions,
		client.WithTimeout(cfg.ActionTimeout()),
		client.WithRetries(cfg.Intervals.HTTPRetries, 500*time.Millisecond, 5*time.Second))
	return &env{cfg: cfg, sessions: sessions, backend: backend}, nil
}

func (e *env) branchID(sess *session.Session) int64 {
	if e.cfg.BranchID != 0 {
		return e.cfg.BranchID
	}
	return sess.BranchID
}

// buildNotifier always logs, and adds e-mail and push when configured.
func (e *env) buildNotifier(ctx context.Context) notify.Notifier {
	sinks := notify.Multi{notify.Log{}}
	n := e.cfg.Notify
	if n.SendGrid.APIKey != "" {
		sinks = append(sinks, notify.NewSendGrid(n.SendGrid.APIKey, n.SendGrid.FromEmail, n.SendGrid.FromName, n.AlertEmail))
	}
	if n.FirebaseCredentials != "" {
		push, err := notify.NewPush(ctx, n.FirebaseCredentials, n.TopicPrefix)
		if err != nil {
			logger.Warn("Push alerts disabled", "error", err)
		} else {
			sinks = append(sinks, push)
		}
	}
	return sinks
}

func (e *env) monitor(ctx context.Context, sess *session.Session) *monitor.Monitor {
	return monitor.New(monitor.Config{
		BranchID:      e.branchID(sess),
		PollInterval:  e.cfg.PollInterval(),
		SyncInterval:  e.cfg.SyncInterval(),
		TickInterval:  e.cfg.TickInterval(),
		ActionTimeout: e.cfg.ActionTimeout(),
		AlertBuffer:   e.cfg.Notify.QueueSize,
	}, e.backend, e.buildNotifier(ctx))
}

func runLogin(cctx *cli.Context) error {
	e, err := setup(cctx)
	if err != nil {
		return err
	}
	password := cctx.String("password")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	res, err := e.backend.Login(cctx.Context, cctx.String("username"), password)
	if err != nil {
		return err
	}
	sess, err := e.sessions.Set(res.AccessToken)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s, branch %d)\n", displayName(sess), sess.Role(), sess.BranchID)
	if sess.Role() == domain.RoleUnknown {
		fmt.Fprintf(os.Stderr, "warning: role %q is not recognised, rental actions will be refused\n", sess.RawRole)
	}
	return nil
}

func runLogout(cctx *cli.Context) error {
	e, err := setup(cctx)
	if err != nil {
		return err
	}
	if err := e.sessions.Clear(); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func runWatch(cctx *cli.Context) error {
	e, err := setup(cctx)
	if err != nil {
		return err
	}
	sess, err := e.sessions.Current()
	if err != nil {
		return signInFirst(err)
	}

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := e.monitor(ctx, sess)
	if cctx.Bool("once") {
		if err := m.Prepare(ctx); err != nil {
			return err
		}
		return renderBoard(os.Stdout, m.Once(ctx), m.Gate())
	}

	return m.Run(ctx, func(snap aggregator.Snapshot) {
		fmt.Print("\033[H\033[2J")
		if err := renderBoard(os.Stdout, snap, m.Gate()); err != nil {
			logger.Warn("Failed to render board", "error", err)
		}
	})
}

// action loads the board once and hands the monitor to fn.
func action(cctx *cli.Context, fn func(ctx context.Context, m *monitor.Monitor, id int64) (*domain.Rental, error)) error {
	id, err := strconv.ParseInt(cctx.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("need a rental id as the first argument")
	}
	e, err := setup(cctx)
	if err != nil {
		return err
	}
	sess, err := e.sessions.Current()
	if err != nil {
		return signInFirst(err)
	}

	ctx := cctx.Context
	m := e.monitor(ctx, sess)
	if err := m.Prepare(ctx); err != nil {
		return err
	}
	rt, err := fn(ctx, m, id)
	if err != nil {
		return explain(err)
	}
	if rt != nil {
		fmt.Printf("Rental %d is now %s (%d min, %s)\n", rt.ID, rt.Status, rt.DurationMinutes, service.FormatCents(rt.TotalPriceCents))
	}
	return nil
}

func runCancel(cctx *cli.Context) error {
	return action(cctx, func(ctx context.Context, m *monitor.Monitor, id int64) (*domain.Rental, error) {
		return m.Gate().Cancel(ctx, id, cctx.String("reason"))
	})
}

func runExtend(cctx *cli.Context) error {
	return action(cctx, func(ctx context.Context, m *monitor.Monitor, id int64) (*domain.Rental, error) {
		return m.Gate().Extend(ctx, id, int32(cctx.Int("minutes")))
	})
}

func runComplete(cctx *cli.Context) error {
	return action(cctx, func(ctx context.Context, m *monitor.Monitor, id int64) (*domain.Rental, error) {
		payment := domain.PaymentInfo{Method: cctx.String("method"), PaidCents: cctx.Int64("paid-cents")}
		if payment.PaidCents < 0 {
			rt, ok := m.Board().Get(id)
			if !ok {
				return nil, gate.ErrUnknownRental
			}
			payment.PaidCents = rt.TotalPriceCents
		}
		return m.Gate().Complete(ctx, id, payment)
	})
}

func signInFirst(err error) error {
	if errors.Is(err, session.ErrNoSession) {
		return fmt.Errorf("not signed in, run `rentalwatch login` first")
	}
	return err
}

// explain turns gate and backend errors into something a cashier can act on.
func explain(err error) error {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, gate.ErrCancelWindowClosed):
		return fmt.Errorf("too late to cancel: the cancellation window has closed")
	case errors.Is(err, gate.ErrActionTimeout):
		return fmt.Errorf("the backend did not answer in time, nothing was changed locally; try again")
	case errors.Is(err, gate.ErrUnknownRental):
		return fmt.Errorf("no such open rental on this branch")
	case errors.As(err, &apiErr):
		return fmt.Errorf("backend refused (%d): %s", apiErr.StatusCode, apiErr.Message)
	}
	return err
}

func displayName(s *session.Session) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Username
}
