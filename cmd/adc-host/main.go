// Command adc-host talks to an ADC controller board over its serial link, or
// to a simulated board built from a configuration file.
//
//	adc-host check <config.yaml> [-watch]
//	adc-host ports
//	adc-host connect [-device /dev/ttyACM0 | -sim config.yaml]
//	adc-host serve [-addr :8080] [-device ... | -sim config.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goadc/config"
	"goadc/host/api"
	"goadc/host/client"
	"goadc/host/serial"
	"goadc/host/sim"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: adc-host <command> [flags]

commands:
  check <config>   validate a board configuration
  ports            list serial devices
  connect          interactive session with a board
  serve            HTTP API for a board`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "check":
		err = runCheck(ctx, args)
	case "ports":
		err = runPorts()
	case "connect":
		err = runConnect(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error(os.Args[1]+" failed", "err", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// boardFlags are the flags shared by the commands that need a board.
type boardFlags struct {
	device  *string
	baud    *int
	simCfg  *string
	period  *time.Duration
	timeout *time.Duration
	debug   *bool
}

func addBoardFlags(fs *flag.FlagSet) *boardFlags {
	return &boardFlags{
		device:  fs.String("device", "/dev/ttyACM0", "serial device path"),
		baud:    fs.Int("baud", config.DefaultBaud, "baud rate (ignored for USB CDC)"),
		simCfg:  fs.String("sim", "", "simulate the board described by this config instead of opening a device"),
		period:  fs.Duration("sim-period", 10*time.Millisecond, "conversion period of the simulated board"),
		timeout: fs.Duration("connect-timeout", 5*time.Second, "how long to wait for the device"),
		debug:   fs.Bool("debug", false, "enable debug logging"),
	}
}

// open connects to the selected board. A simulated board runs until ctx is
// done.
func (f *boardFlags) open(ctx context.Context) (*client.Client, error) {
	if *f.simCfg == "" {
		cfg := serial.DefaultConfig(*f.device)
		cfg.Baud = *f.baud
		slog.Info("connecting", "device", cfg.Device, "baud", cfg.Baud)
		return client.Dial(ctx, cfg, client.Options{MaxElapsed: *f.timeout})
	}

	file, err := config.Load(*f.simCfg)
	if err != nil {
		return nil, err
	}
	cc, err := file.Check()
	if err != nil {
		return nil, err
	}
	board, err := sim.New(cc, slog.Default())
	if err != nil {
		return nil, err
	}
	go board.Run(ctx, *f.period)
	slog.Info("simulating board", "config", *f.simCfg, "units", len(cc.Units), "groups", len(cc.Groups))

	c := client.New(board.Pipe(), slog.Default())
	ictx, cancel := context.WithTimeout(ctx, *f.timeout)
	defer cancel()
	if err := c.Identify(ictx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func runCheck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	watch := fs.Bool("watch", false, "re-check whenever the file changes")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("check: expected one config file")
	}
	path := fs.Arg(0)
	setupLogging(false)

	check := func(f *config.File, err error) error {
		if err == nil {
			_, err = f.Check()
		}
		if err != nil {
			slog.Error("config rejected", "path", path, "err", err)
			return err
		}
		slog.Info("config ok", "path", path, "units", len(f.Units), "groups", len(f.Groups))
		return nil
	}
	err := check(config.Load(path))
	if !*watch {
		return err
	}
	report := func(f *config.File, err error) { check(f, err) }
	return config.Watch(ctx, path, report)
}

func runPorts() error {
	ports, err := serial.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "HTTP listen address")
	bf := addBoardFlags(fs)
	fs.Parse(args)
	setupLogging(*bf.debug)

	c, err := bf.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	bus := api.NewBus()
	go bus.Pump(ctx, c.Events())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.NewRouter(c, bus),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
