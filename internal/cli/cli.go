package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wavesbyte/cibtron-tool/internal/api"
	"github.com/wavesbyte/cibtron-tool/internal/certs"
	"github.com/wavesbyte/cibtron-tool/internal/config"
	"github.com/wavesbyte/cibtron-tool/internal/fakebackend"
	"github.com/wavesbyte/cibtron-tool/internal/form"
	"github.com/wavesbyte/cibtron-tool/internal/joblog"
	"github.com/wavesbyte/cibtron-tool/internal/jobsync"
	"github.com/wavesbyte/cibtron-tool/internal/ports"
	"github.com/wavesbyte/cibtron-tool/internal/push"
	"github.com/wavesbyte/cibtron-tool/internal/serial"
	"github.com/wavesbyte/cibtron-tool/internal/tui"
)

// CLI is the root command structure for cibtron.
type CLI struct {
	Verbose      bool          `short:"v" help:"Enable verbose debug output"`
	Backend      string        `help:"Backend base URL (overrides CIBTRON_BACKEND_URL)" placeholder:"URL"`
	PollInterval time.Duration `name:"poll-interval" help:"Port liveness poll interval (overrides CIBTRON_POLL_INTERVAL)"`

	// Default command - TUI
	Tui TuiCmd `cmd:"" default:"withargs" help:"Launch interactive TUI (default)"`

	Ports   PortsCmd   `cmd:"" help:"Serial port discovery"`
	Serial  SerialCmd  `cmd:"" help:"Device serial number detection"`
	Program ProgramCmd `cmd:"" help:"Run programming jobs"`
	Certs   CertsCmd   `cmd:"" help:"Programming history"`
	Device  DeviceCmd  `cmd:"" help:"Device control"`
	Session SessionCmd `cmd:"" help:"Operator session"`
	Debug   DebugCmd   `cmd:"" help:"Debug and development tools"`

	// Out receives command output; nil means stdout.
	Out io.Writer `kong:"-"`
}

func (g *CLI) out() io.Writer {
	if g.Out != nil {
		return g.Out
	}
	return os.Stdout
}

// setup loads the configuration, applies the global flags and builds the
// logger. The TUI logs to a file since it owns the terminal.
func (g *CLI) setup(toFile bool) (*config.Config, *zap.Logger, error) {
	config.Verbose = g.Verbose

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if g.Backend != "" {
		cfg.BackendURL = g.Backend
	}
	if g.PollInterval > 0 {
		cfg.PollInterval = g.PollInterval
	}

	path := cfg.LogFile
	if toFile && path == "" {
		if path, err = config.DefaultLogPath(); err != nil {
			return nil, nil, fmt.Errorf("failed to resolve log file: %w", err)
		}
	}
	logger, err := config.InitLog(cfg.Level(), path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	config.Debugf("backend %s, poll every %s", cfg.BackendURL, cfg.PollInterval)
	return cfg, logger, nil
}

// connect is setup plus an API client for the configured backend.
func (g *CLI) connect() (*config.Config, *api.Client, *zap.Logger, error) {
	cfg, logger, err := g.setup(false)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := api.New(cfg.BackendURL, api.WithTimeout(cfg.HTTPTimeout), api.WithIDToken(cfg.IDToken))
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, client, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// resolvePort returns port, or the single detected port when empty.
func resolvePort(ctx context.Context, client *api.Client, port string) (string, error) {
	if port != "" {
		return port, nil
	}
	reg := ports.NewRegistry()
	res := ports.Refresh(ctx, client, reg, true)
	if res.Selected == "" {
		if n := len(reg.Ports()); n > 1 {
			return "", fmt.Errorf("%d ports detected, choose one with --port", n)
		}
		return "", errors.New(reg.Placeholder())
	}
	return res.Selected, nil
}

// detectSerial resolves the serial of the device on port.
func detectSerial(ctx context.Context, client *api.Client, port string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out := serial.NewResolver(client).Resolve(ctx, port)
	if !out.OK() {
		return "", fmt.Errorf("%s: %s", out.Value, api.Message(out.Err))
	}
	return out.Value, nil
}

// --- TUI Command ---

type TuiCmd struct {
	NoPush bool `name:"no-push" help:"Do not subscribe to live job status events"`
}

func (c *TuiCmd) Run(globals *CLI) error {
	cfg, logger, err := globals.setup(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := api.New(cfg.BackendURL, api.WithTimeout(cfg.HTTPTimeout), api.WithIDToken(cfg.IDToken))
	if err != nil {
		return err
	}
	var pc *push.Client
	if !c.NoPush {
		pc = push.New(client.BaseURL(), client.IDToken(), push.WithLogger(logger.Named("push")))
	}

	ctx, cancel := signalContext()
	defer cancel()
	return tui.Run(ctx, client, pc, cfg, logger)
}

// --- Port Commands ---

type PortsCmd struct {
	List  PortsListCmd  `cmd:"" help:"List detected taximeter ports"`
	Watch PortsWatchCmd `cmd:"" help:"Follow port selection and connectivity"`
}

type PortsListCmd struct{}

func (c *PortsListCmd) Run(globals *CLI) error {
	cfg, client, _, err := globals.connect()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	list, err := client.Ports(ctx)
	if err != nil {
		return fmt.Errorf("%s: %s", ports.PlaceholderError, api.Message(err))
	}

	out := globals.out()
	if len(list) == 0 {
		fmt.Fprintln(out, ports.PlaceholderNone)
		return nil
	}
	fmt.Fprintf(out, "Found %d port(s):\n\n", len(list))
	for _, p := range list {
		fmt.Fprintf(out, "  %-10s  %-28s  %s\n", p.Device, p.Description, p.HWID)
	}
	return nil
}

type PortsWatchCmd struct {
	Detect bool `help:"Detect the serial number whenever a port is selected" default:"true" negatable:""`
}

func (c *PortsWatchCmd) Run(globals *CLI) error {
	cfg, client, logger, err := globals.connect()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	out := globals.out()
	reg := ports.NewRegistry()
	err = ports.Watch(ctx, client, reg, cfg.PollInterval, func(r *ports.Registry, res ports.Result) {
		if res.Lost != "" {
			fmt.Fprintf(out, "Port %s disconnected. Refreshing...\n", res.Lost)
		}
		if r.Selected() == "" {
			fmt.Fprintf(out, "%s (%s)\n", r.Status(), r.Placeholder())
			return
		}
		fmt.Fprintln(out, r.Status())
		if c.Detect && res.Resolve {
			sn, err := detectSerial(ctx, client, res.Selected, cfg.SerialTimeout)
			if err != nil {
				logger.Warn("serial detection failed", zap.String("port", res.Selected), zap.Error(err))
				fmt.Fprintf(out, "  serial: %v\n", err)
				return
			}
			fmt.Fprintf(out, "  serial: %s\n", sn)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// --- Serial Commands ---

type SerialCmd struct {
	Detect SerialDetectCmd `cmd:"" help:"Read the serial number of the connected taximeter"`
}

type SerialDetectCmd struct {
	Port string `arg:"" optional:"" help:"Port of the device (defaults to the only detected port)"`
}

func (c *SerialDetectCmd) Run(globals *CLI) error {
	cfg, client, _, err := globals.connect()
	if err != nil {
		return err
	}
	ctx := context.Background()

	port, err := resolvePort(ctx, client, c.Port)
	if err != nil {
		return err
	}
	sn, err := detectSerial(ctx, client, port, cfg.SerialTimeout)
	if err != nil {
		return err
	}
	fmt.Fprintf(globals.out(), "%s: %s\n", port, sn)
	return nil
}

// --- Program Commands ---

type ProgramCmd struct {
	Params ProgramParamsCmd `cmd:"" help:"Program the taximeter parameters"`
	Serial ProgramSerialCmd `cmd:"" help:"Program a new serial number"`
}

type ProgramParamsCmd struct {
	Values  string        `short:"f" required:"" type:"existingfile" help:"YAML file with the parameter values"`
	Port    string        `help:"Port of the device (defaults to the only detected port)"`
	Poll    bool          `help:"Follow the job with /get_job_status instead of the push channel"`
	Timeout time.Duration `default:"10m" help:"Give up waiting for the job after this long"`
}

func (c *ProgramParamsCmd) Run(globals *CLI) error {
	cfg, client, logger, err := globals.connect()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelRun := context.WithTimeout(ctx, c.Timeout)
	defer cancelRun()

	ctrl := form.NewController(form.WithConstants(cfg.Brand, cfg.Model))
	email, err := client.UserData(ctx)
	if err != nil {
		return fmt.Errorf("could not load the operator identity: %s", api.Message(err))
	}
	ctrl.SetOperator(api.OperatorName(email))

	port, err := resolvePort(ctx, client, c.Port)
	if err != nil {
		return err
	}
	sn, err := detectSerial(ctx, client, port, cfg.SerialTimeout)
	if err != nil {
		return err
	}
	if err := ctrl.LoadValues(c.Values); err != nil {
		return err
	}
	// the detected serial wins over one carried in the values file
	ctrl.SetSerial(sn)
	if err := ctrl.Validate(); err != nil {
		return err
	}

	out := globals.out()
	runner := newJobRunner(client, out, logger)
	var events <-chan push.Message
	if c.Poll {
		events = pollStatus(ctx, client, cfg.PollInterval, runner.Accepted())
	} else {
		pc := push.New(client.BaseURL(), client.IDToken(), push.WithLogger(logger.Named("push")))
		var first push.Message
		if events, first, err = connectPush(ctx, pc, cfg.HTTPTimeout); err != nil {
			return fmt.Errorf("%w (retry with --poll)", err)
		}
		runner.print(joblog.TagSystem, "", first.Text())
	}

	_, err = runner.Run(ctx, jobsync.Parameters, ctrl.CorrelationID(), sn, ctrl.Payload(port), events)
	return err
}

type ProgramSerialCmd struct {
	Serial    string        `arg:"" help:"New serial number (digits only)"`
	AccessKey string        `name:"key" env:"CIBTRON_ACCESS_KEY" help:"10-character access key"`
	Port      string        `help:"Port of the device (defaults to the only detected port)"`
	Timeout   time.Duration `default:"5m" help:"Give up waiting for the job after this long"`
}

func (c *ProgramSerialCmd) Run(globals *CLI) error {
	typed := form.SetSerialRequest{Serial: c.Serial, AccessKey: c.AccessKey}
	if err := typed.ValidateInput(); err != nil {
		return err
	}

	cfg, client, logger, err := globals.connect()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelRun := context.WithTimeout(ctx, c.Timeout)
	defer cancelRun()

	email, err := client.UserData(ctx)
	if err != nil {
		return fmt.Errorf("could not load the operator identity: %s", api.Message(err))
	}
	port, err := resolvePort(ctx, client, c.Port)
	if err != nil {
		return err
	}

	req := form.SetSerialRequest{
		Operator:  api.OperatorName(email),
		Serial:    c.Serial,
		AccessKey: c.AccessKey,
		Port:      port,
		UUID:      uuid.NewString(),
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	pc := push.New(client.BaseURL(), client.IDToken(), push.WithLogger(logger.Named("push")))
	events, first, err := connectPush(ctx, pc, cfg.HTTPTimeout)
	if err != nil {
		return err
	}
	runner := newJobRunner(client, globals.out(), logger)
	runner.print(joblog.TagSystem, "", first.Text())

	_, err = runner.Run(ctx, jobsync.SetSerial, req.UUID, req.Serial, req.Values(), events)
	return err
}

// --- Certificate Commands ---

type CertsCmd struct {
	Search CertsSearchCmd `cmd:"" help:"List the programmings of a serial number"`
	Show   CertsShowCmd   `cmd:"" help:"Show the stored values of one programming"`
}

type certYAML struct {
	ID       string `yaml:"id"`
	Date     string `yaml:"date"`
	Operator string `yaml:"operator"`
	Plate    string `yaml:"plate"`
	Path     string `yaml:"path,omitempty"`
}

type CertsSearchCmd struct {
	Serial string `arg:"" help:"Device serial number"`
	Output string `short:"o" enum:"text,yaml" default:"text" help:"Output format (text, yaml)"`
}

func (c *CertsSearchCmd) Run(globals *CLI) error {
	cfg, client, _, err := globals.connect()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	list, err := certs.NewBrowser(client).Search(ctx, c.Serial)
	if err != nil {
		return fmt.Errorf("%s %s", certs.SearchFailed, api.Message(err))
	}

	out := globals.out()
	if c.Output == "yaml" {
		docs := make([]certYAML, 0, len(list))
		for _, s := range list {
			docs = append(docs, certYAML{ID: s.ID, Date: s.RawDate, Operator: s.Operator, Plate: s.Plate, Path: s.Data.Path})
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(docs)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, certs.NoResults)
		return nil
	}
	now := time.Now()
	fmt.Fprintf(out, "Found %d programming(s) of %s:\n", len(list), strings.TrimSpace(c.Serial))
	for _, s := range list {
		fmt.Fprintln(out)
		for _, line := range s.Card(now) {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	return nil
}

type CertsShowCmd struct {
	Serial string `arg:"" help:"Device serial number"`
	ID     string `help:"Programming ID, full or short (defaults to the latest)"`
	Output string `short:"o" enum:"text,yaml" default:"text" help:"Output format; yaml writes a values file for 'program params'"`
}

func (c *CertsShowCmd) Run(globals *CLI) error {
	cfg, client, _, err := globals.connect()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	list, err := certs.NewBrowser(client).Search(ctx, c.Serial)
	if err != nil {
		return fmt.Errorf("%s %s", certs.SearchFailed, api.Message(err))
	}
	if len(list) == 0 {
		return errors.New(certs.NoResults)
	}

	s := list[0]
	if c.ID != "" {
		found := false
		for _, cand := range list {
			if cand.ID == c.ID || cand.ShortID == c.ID {
				s, found = cand, true
				break
			}
		}
		if !found {
			return fmt.Errorf("programming not found: %s", c.ID)
		}
	}

	out := globals.out()
	if c.Output == "yaml" {
		if s.Data.EnvVars == nil {
			return errors.New(certs.NoDetails)
		}
		return form.EncodeValues(out, form.Snapshot(s.Data.EnvVars))
	}

	fmt.Fprintf(out, "Programming %s\n", s.ID)
	fmt.Fprintf(out, "  %-26s %s\n", "Date:", s.When(time.Now()))
	fmt.Fprintf(out, "  %-26s %s\n\n", "Operator:", s.Operator)
	details := certs.Details(s)
	if details == nil {
		fmt.Fprintln(out, certs.NoDetails)
		return nil
	}
	for _, d := range details {
		fmt.Fprintf(out, "  %-26s %s\n", d.Label+":", d.Value)
	}
	return nil
}

// --- Device Commands ---

type DeviceCmd struct {
	Reset DeviceResetCmd `cmd:"" help:"Flash the serial reader firmware back onto the device"`
}

type DeviceResetCmd struct {
	Port string `help:"Port of the device (defaults to the only detected port)"`
	Yes  bool   `short:"y" help:"Do not ask for confirmation"`
}

func (c *DeviceResetCmd) Run(globals *CLI) error {
	cfg, client, _, err := globals.connect()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	port, err := resolvePort(ctx, client, c.Port)
	if err != nil {
		return err
	}
	if !c.Yes {
		return fmt.Errorf("resetting the device on %s erases its firmware; pass --yes to confirm", port)
	}

	out := globals.out()
	fmt.Fprintln(out, "Starting Cibtron firmware reset...")
	message, err := client.ResetDevice(ctx, port)
	if err != nil {
		return fmt.Errorf("reset failed: %s", api.Message(err))
	}
	if message == "" {
		message = "Device reset to the serial reader firmware."
	}
	fmt.Fprintln(out, message)
	return nil
}

// --- Session Commands ---

type SessionCmd struct {
	Whoami SessionWhoamiCmd `cmd:"" help:"Show the operator of the current session"`
	Logout SessionLogoutCmd `cmd:"" help:"Close the session"`
}

type SessionWhoamiCmd struct{}

func (c *SessionWhoamiCmd) Run(globals *CLI) error {
	cfg, client, _, err := globals.connect()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	email, err := client.UserData(ctx)
	if err != nil {
		return fmt.Errorf("could not load the operator identity: %s", api.Message(err))
	}
	fmt.Fprintf(globals.out(), "Operator: %s\nEmail:    %s\n", api.OperatorName(email), email)
	return nil
}

type SessionLogoutCmd struct{}

func (c *SessionLogoutCmd) Run(globals *CLI) error {
	cfg, client, _, err := globals.connect()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	if err := client.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %s", api.Message(err))
	}
	fmt.Fprintln(globals.out(), "Session closed.")
	return nil
}

// --- Debug Commands ---

type DebugCmd struct {
	FakeBackend DebugFakeBackendCmd `cmd:"" name:"fake-backend" help:"Serve a scripted backend for rehearsal"`
}

type DebugFakeBackendCmd struct {
	Script string `type:"existingfile" help:"YAML file describing ports, serials and job scripts"`
	Listen string `default:"127.0.0.1:5000" help:"Address to listen on"`
}

func (c *DebugFakeBackendCmd) Run(globals *CLI) error {
	_, logger, err := globals.setup(false)
	if err != nil {
		return err
	}
	opts, err := fakebackend.LoadOptions(c.Script)
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.Listen, err)
	}
	srv := fakebackend.New(opts, logger.Named("fakebackend"))

	ctx, cancel := signalContext()
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()

	fmt.Fprintf(globals.out(), "Fake backend listening on http://%s\n", l.Addr())
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
