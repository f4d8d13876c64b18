package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"davhammer/internal/banner"
	"davhammer/internal/cli"
	"davhammer/internal/runner"
	"davhammer/internal/server"
	"davhammer/internal/tui"
)

var (
	cfgFile string

	// CLI Flags
	targetBaseURL  string
	username       string
	password       string
	requestCount   int
	concurrency    int
	userAgent      string
	connectTimeout time.Duration
	pacePause      time.Duration
	live           bool
)

var rootCmd = &cobra.Command{
	Use:   "davhammer",
	Short: "davhammer - WebDAV HEAD request stress tester",
	Long: `
davhammer issues a configured number of HTTP HEAD requests against a WebDAV
server, holding a fixed number of requests in flight, and reports throughput,
latency and status distribution at the end of the run.

Run "davhammer serve" to start the bundled reference test server.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Config file / env can fill in anything not set on the command line
		if targetBaseURL == "" {
			targetBaseURL = viper.GetString("target_base_url")
		}
		if username == "" {
			username = viper.GetString("username")
		}
		if password == "" {
			password = viper.GetString("password")
		}

		if targetBaseURL == "" {
			fmt.Println("❌ --target_base_url required")
			os.Exit(1)
		}
		if username == "" {
			fmt.Println("❌ --username required")
			os.Exit(1)
		}
		if password == "" {
			fmt.Println("❌ --password required")
			os.Exit(1)
		}

		cfg := runner.Config{
			TargetBaseURL:  targetBaseURL,
			Username:       username,
			Password:       password,
			RequestCount:   requestCount,
			Concurrency:    concurrency,
			UserAgent:      userAgent,
			ConnectTimeout: connectTimeout,
			PacePause:      pacePause,
		}

		var err error
		if live {
			err = runLive(cfg)
		} else {
			err = cli.Start(cfg)
		}
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.davhammer.yaml)")

	rootCmd.Flags().StringVarP(&targetBaseURL, "target_base_url", "t", "", "Base URL of the WebDAV server (e.g. http://localhost:8000)")
	rootCmd.Flags().StringVarP(&username, "username", "u", "", "Basic Auth username")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "Basic Auth password")
	rootCmd.Flags().IntVarP(&requestCount, "request_count", "n", runner.DefaultRequestCount, "Total number of HEAD requests to send")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "c", runner.DefaultConcurrency, "Max simultaneous in-flight requests")
	rootCmd.Flags().StringVarP(&userAgent, "user_agent", "A", runner.DefaultUserAgent, "User-Agent header value")
	rootCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", runner.DefaultConnectTimeout, "Connection-establishment timeout")
	rootCmd.Flags().DurationVar(&pacePause, "pace", runner.DefaultPacePause, "Submission pause applied every 10000th request")
	rootCmd.Flags().BoolVar(&live, "live", false, "Show live dashboard while the test runs")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".davhammer")
		}
	}
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

// --- Runners ---

func runLive(cfg runner.Config) error {
	updates := make(runner.StatsUpdateChan, 100)
	r := runner.NewRunner(cfg, updates)
	r.Out = io.Discard // progress line would corrupt the dashboard

	start := time.Now()
	if err := tui.Run(r, updates); err != nil {
		return err
	}
	cli.WriteSummary(os.Stdout, r.Stats, time.Since(start))
	return nil
}

// --- Serve Subcommand ---
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference WebDAV test server",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		user, _ := cmd.Flags().GetString("username")
		pass, _ := cmd.Flags().GetString("password")
		if err := server.Run(server.Config{Port: port, Username: user, Password: pass}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().IntP("port", "P", server.DefaultPort, "Port to listen on")
	serveCmd.Flags().String("username", server.DefaultUsername, "Accepted Basic Auth username")
	serveCmd.Flags().String("password", server.DefaultPassword, "Accepted Basic Auth password")
}
