// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zthompson47/time2freq/internal/audio"
	"github.com/zthompson47/time2freq/internal/config"
	applog "github.com/zthompson47/time2freq/internal/log"
	"github.com/zthompson47/time2freq/internal/meter"
	"github.com/zthompson47/time2freq/internal/observe"
	"github.com/zthompson47/time2freq/internal/transport"
	"github.com/zthompson47/time2freq/internal/transport/udp"
	"github.com/zthompson47/time2freq/internal/tui"
	"github.com/zthompson47/time2freq/pkg/build"
)

// options holds flag values. Flags only override the config file when set.
type options struct {
	configPath  string
	verbose     bool
	logFile     string
	tuiMode     bool
	device      int
	sampleRate  int
	channels    int
	latencyMs   int
	record      bool
	outputDir   string
	udpEnabled  bool
	udpTarget   string
	wsEnabled   bool
	wsAddress   string
	metrics     bool
	idlePoll    time.Duration
	sessionOpts []audio.Option
}

// NewRootCmd builds the command tree. Output goes to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &options{idlePoll: 50 * time.Millisecond}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default config.yaml or time2freq.yaml if present)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Show debug output")
	pf.BoolVarP(&opts.tuiMode, "tui", "t", false, "Use the terminal interface")

	playCmd := &cobra.Command{
		Use:   "play FILE...",
		Short: "Play audio files and meter their level",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runPlay(cmd.Context(), cfg, opts, args)
		},
	}
	f := playCmd.Flags()
	f.IntVarP(&opts.device, "device", "d", config.DefaultOutputDevice,
		"Output device ID. Use 'list' to see available devices.")
	f.IntVarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate, "Device sample rate in Hz")
	f.IntVarP(&opts.channels, "channels", "c", config.DefaultChannels, "Device channels (1=mono, 2=stereo)")
	f.IntVarP(&opts.latencyMs, "latency", "l", config.DefaultLatencyMs, "Output buffering in milliseconds")
	f.BoolVarP(&opts.record, "record", "r", false, "Record the output stream to WAV")
	f.StringVarP(&opts.outputDir, "output", "o", "", "Recording directory")
	f.BoolVar(&opts.udpEnabled, "udp", false, "Send level packets over UDP")
	f.StringVar(&opts.udpTarget, "udp-target", config.DefaultUDPTarget, "UDP level packet destination")
	f.BoolVar(&opts.wsEnabled, "ws", false, "Broadcast levels over WebSocket on /ws")
	f.StringVar(&opts.wsAddress, "ws-address", config.DefaultWSAddress, "Listen address for /ws and /metrics")
	f.BoolVar(&opts.metrics, "metrics", false, "Serve Prometheus metrics on /metrics")
	f.StringVar(&opts.logFile, "log-file", "", "Write logs here while the terminal interface runs")
	rootCmd.AddCommand(playCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available output devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			setLogLevel(opts.verbose, "")
			return runList(cmd.OutOrStdout(), opts.tuiMode)
		},
	}
	rootCmd.AddCommand(listCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.GetBuildFlags())
		},
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// Execute runs the CLI with os.Args until ctx is cancelled.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd(os.Stdout)
	rootCmd.SetArgs(os.Args[1:])
	return rootCmd.ExecuteContext(ctx)
}

func setLogLevel(verbose bool, level string) {
	if verbose {
		applog.SetLevel(applog.LevelDebug)
		return
	}
	if l, ok := applog.ParseLevel(level); ok {
		applog.SetLevel(l)
	}
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("device") {
		cfg.Audio.OutputDevice = opts.device
	}
	if f.Changed("sample-rate") {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if f.Changed("channels") {
		cfg.Audio.Channels = opts.channels
	}
	if f.Changed("latency") {
		cfg.Audio.LatencyMs = opts.latencyMs
	}
	if f.Changed("record") {
		cfg.Recording.Enabled = opts.record
	}
	if f.Changed("output") {
		cfg.Recording.OutputDir = opts.outputDir
	}
	if f.Changed("udp") {
		cfg.Transport.UDPEnabled = opts.udpEnabled
	}
	if f.Changed("udp-target") {
		cfg.Transport.UDPTargetAddress = opts.udpTarget
	}
	if f.Changed("ws") {
		cfg.Transport.WSEnabled = opts.wsEnabled
	}
	if f.Changed("ws-address") {
		cfg.Transport.WSAddress = opts.wsAddress
	}
	if f.Changed("metrics") {
		cfg.Transport.MetricsEnabled = opts.metrics
	}
	if opts.verbose {
		cfg.Debug = true
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	setLogLevel(false, cfg.LogLevel)
	return cfg, cfg.Validate()
}

func runList(out io.Writer, tuiMode bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !tuiMode {
		return audio.ListDevices(out)
	}
	sel, err := tui.StartDeviceListUI(audio.HostDevices)
	if err != nil || sel == nil {
		return err
	}
	fmt.Fprintf(out, "audio:\n  output_device: %d\n  sample_rate: %d\n", sel.DeviceID, sel.SampleRate)
	return nil
}

// runPlay plays files in order. Without the terminal interface it returns
// once the last file has drained; with it, when the user quits.
func runPlay(ctx context.Context, cfg *config.Config, opts *options, files []string) (err error) {
	if opts.tuiMode {
		w := io.Discard
		if opts.logFile != "" {
			lf, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return err
			}
			defer lf.Close()
			w = lf
		}
		applog.SetOutput(w)
		defer applog.SetOutput(os.Stderr)
	}

	session, err := audio.NewSession(cfg, opts.sessionOpts...)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, session.Close()) }()

	transports := []transport.Transport{}
	if applog.GetLevel() == applog.LevelDebug && !opts.tuiMode {
		transports = append(transports, transport.NewLoggingTransport())
	}

	var provider *observe.Provider
	if cfg.Transport.MetricsEnabled {
		provider, err = observe.NewPrometheusProvider(build.GetBuildFlags().Version)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, provider.Shutdown(context.Background())) }()
	}

	if cfg.Transport.WSEnabled || cfg.Transport.MetricsEnabled {
		var wsOpts []transport.WSOption
		if provider != nil {
			wsOpts = append(wsOpts, transport.WithHandler("/metrics", provider.Handler()))
		}
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WSAddress, wsOpts...)
		if err != nil {
			return err
		}
		// The meter closes its transports.
		transports = append(transports, ws)
	}

	m := meter.New(session, cfg.Meter.Interval, transports...)
	m.Start()
	defer func() { err = errors.Join(err, m.Close()) }()

	if provider != nil {
		reg, err := observe.Register(provider, session, m)
		if err != nil {
			return err
		}
		defer reg.Unregister()
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()
		pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, m)
		if err != nil {
			return err
		}
		pub.Start()
		defer pub.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.Go(func() error {
		if err := playAll(ctx, session, files, opts.idlePoll); err != nil {
			return err
		}
		if err := drain(ctx, session, opts.idlePoll); err != nil {
			return err
		}
		if !opts.tuiMode {
			cancel()
		}
		return nil
	})

	if opts.tuiMode {
		g.Go(func() error {
			defer cancel()
			title := filepath.Base(files[0])
			if len(files) > 1 {
				title = fmt.Sprintf("%s (+%d)", title, len(files)-1)
			}
			return tui.RunLevelUI(title, m.Updates(), session)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// playAll starts each file once the previous one has finished.
func playAll(ctx context.Context, s *audio.Session, files []string, poll time.Duration) error {
	for _, f := range files {
		s.Play(f)
		for !s.Idle() {
			if err := sleepCtx(ctx, poll); err != nil {
				return err
			}
		}
	}
	return nil
}

// drain waits until the device has taken every queued frame, then for one
// more callback so the final buffer is heard.
func drain(ctx context.Context, s *audio.Session, poll time.Duration) error {
	for s.Buffered() > 0 {
		if err := sleepCtx(ctx, poll); err != nil {
			return err
		}
	}
	cfg := s.Config()
	frames := cfg.Audio.FramesPerBuffer
	if frames == 0 {
		frames = cfg.LatencyFrames()
	}
	return sleepCtx(ctx, time.Duration(frames)*time.Second/time.Duration(cfg.Audio.SampleRate))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
