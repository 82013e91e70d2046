package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/davidgeorgehope/hotmike.app/internal/compose"
	"github.com/davidgeorgehope/hotmike.app/internal/config"
	"github.com/davidgeorgehope/hotmike.app/internal/logging"
	"github.com/davidgeorgehope/hotmike.app/internal/media"
	"github.com/davidgeorgehope/hotmike.app/internal/studio"
	"github.com/davidgeorgehope/hotmike.app/internal/suggest"
	"github.com/davidgeorgehope/hotmike.app/internal/transcribe"
	"github.com/davidgeorgehope/hotmike.app/pkg/api"
	"github.com/spf13/cobra"
)

var (
	version     = "0.1.0"
	cfgFile     string
	serverURL   string
	shareScreen bool
)

var rootCmd = &cobra.Command{
	Use:   "hotmike",
	Short: "HotMike recording studio",
	Long:  `HotMike - one-person recording studio with live layout control and AI visual suggestions`,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Open the studio and start recording",
	Run: func(cmd *cobra.Command, args []string) {
		runStudio()
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices",
	Run: func(cmd *cobra.Command, args []string) {
		listDevices()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("HotMike v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active configuration",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/hotmike/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "HotMike server URL")
	recordCmd.Flags().BoolVar(&shareScreen, "screen", false, "start with screen sharing on")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	return cfg
}

func initLogging(cfg *config.Config) io.Closer {
	var out io.Writer = os.Stderr
	var closer io.Closer
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		} else {
			out = logging.TeeWriter(os.Stderr, rw)
			closer = rw
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	return closer
}

func runStudio() {
	cfg := loadConfig()
	if closer := initLogging(cfg); closer != nil {
		defer closer.Close()
	}

	compositor := compose.New(cfg.CanvasWidth, cfg.CanvasHeight, cfg.FrameRate)
	acquirer := media.NewAcquirer(media.Backends{})
	client := api.NewClient(cfg.ServerURL, cfg.AuthToken)

	s := studio.New(cfg, acquirer, compositor, client, studio.Callbacks{
		OnDuration: func(d time.Duration) {
			fmt.Printf("\r%s ", d.Truncate(time.Second))
		},
		OnRecordingError: func(err error) {
			fmt.Fprintf(os.Stderr, "\nRecording failed: %v\n", err)
		},
		OnTranscript: func(seg transcribe.Segment) {
			fmt.Printf("\n> %s\n", seg.Text)
		},
		OnSuggestion: func(sg suggest.Suggestion) {
			fmt.Printf("\n[suggestion] %s\n", sg.Text)
		},
	})

	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open studio: %v\n", err)
		os.Exit(1)
	}
	if shareScreen {
		if err := s.ShareScreen(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Screen share unavailable: %v\n", err)
		}
	}

	id, err := s.StartRecording(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start recording: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Recording session %s\n", id)
	fmt.Println("Keys: 1/2/3 layout, 4 insert visual, 5 clear, tab next, ` dismiss, escape stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	keys := make(chan string)
	go readKeys(os.Stdin, keys)

loop:
	for {
		select {
		case <-sigChan:
			break loop
		case key, ok := <-keys:
			if !ok {
				break loop
			}
			s.HandleKey(key)
			if key == studio.KeyStopRecording {
				break loop
			}
		}
	}

	fmt.Println("\nShutting down studio...")
	if s.Recording() {
		rec, err := s.StopRecording()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stop recording: %v\n", err)
		} else {
			fmt.Printf("Saved %s (%s, %d slices)\n", rec.ID, rec.Duration.Truncate(time.Second), rec.Slices)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Close(shutdownCtx)
}

// readKeys turns stdin lines into key names. Words like "tab" and
// "esc" map onto the same bindings the desktop shell uses.
func readKeys(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key := strings.TrimSpace(strings.ToLower(scanner.Text()))
		switch key {
		case "":
			continue
		case "esc", "q", "quit", "stop":
			out <- studio.KeyStopRecording
		default:
			out <- key
		}
	}
}

func listDevices() {
	cfg := loadConfig()
	initLogging(cfg)

	acquirer := media.NewAcquirer(media.Backends{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	devices, err := acquirer.EnumerateDevices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to enumerate devices: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("No capture devices found")
		return
	}
	for _, d := range devices {
		fmt.Printf("%-6s %-40s %s\n", d.Kind, d.Label, d.ID)
	}
}

func checkStatus() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println("Status: Not configured")
		return
	}

	fmt.Printf("Server: %s\n", cfg.ServerURL)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Printf("Canvas: %dx%d @ %d fps\n", cfg.CanvasWidth, cfg.CanvasHeight, cfg.FrameRate)
	fmt.Printf("AI suggestions: %v\n", cfg.AIEnabled)
	if cfg.PresenterName != "" {
		fmt.Printf("Presenter: %s", cfg.PresenterName)
		if cfg.PresenterTitle != "" {
			fmt.Printf(" (%s)", cfg.PresenterTitle)
		}
		fmt.Println()
	}
}
