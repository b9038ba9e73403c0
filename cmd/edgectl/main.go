// Package main provides the entry point for the edgectl CLI.
// edgectl manages user credentials for the Edgeworks platform through the
// OAuth 2.0 authorization code flow with PKCE.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/edgeworks-dev/edgectl/internal/buildinfo"
	"github.com/edgeworks-dev/edgectl/internal/cmd"
	"github.com/edgeworks-dev/edgectl/internal/config"
	"github.com/edgeworks-dev/edgectl/internal/logging"
	"github.com/edgeworks-dev/edgectl/internal/util"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = "config.yaml"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// main parses command-line flags, loads configuration, and dispatches to the
// selected operation (login, logout, or status).
func main() {
	fmt.Printf("edgectl Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var login bool
	var logout bool
	var status bool
	var noBrowser bool
	var oauthCallbackPort int
	var configPath string

	flag.BoolVar(&login, "login", false, "Login to Edgeworks using OAuth")
	flag.BoolVar(&logout, "logout", false, "Revoke the stored refresh token and remove local credentials")
	flag.BoolVar(&status, "status", false, "Show session status, refreshing the access token if expired")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically for OAuth")
	flag.IntVar(&oauthCallbackPort, "oauth-callback-port", 0, "Override OAuth callback port (defaults to the provider port)")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.Parse()

	// .env values fill in proxy settings and similar for local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	util.SetLogLevel(cfg)
	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		os.Exit(1)
	}

	switch {
	case login:
		options := &cmd.LoginOptions{
			NoBrowser:    noBrowser,
			CallbackPort: oauthCallbackPort,
		}
		if noBrowser {
			options.Prompt = cmd.DefaultPrompt()
		}
		cmd.DoLogin(cfg, options)
	case logout:
		cmd.DoLogout(cfg)
	case status:
		cmd.DoStatus(cfg)
	default:
		flag.Usage()
	}
}
