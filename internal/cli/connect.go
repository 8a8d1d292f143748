package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"pd-docgen/internal/config"
	"pd-docgen/internal/logging"
	"pd-docgen/internal/pdapi"
	"pd-docgen/internal/session"
)

// connectFlags are shared by every command that talks to the API.
type connectFlags struct {
	config   *string
	apiKey   *string
	orgID    *string
	baseURL  *string
	logLevel *string
}

func bindConnectFlags(fs *flag.FlagSet) *connectFlags {
	return &connectFlags{
		config:   fs.String("config", "", "config file path (default: ./pd-docgen.yaml or user config dir)"),
		apiKey:   fs.String("api-key", "", "Pipedream API key (or PDDOC_API_KEY)"),
		orgID:    fs.String("org-id", "", "Pipedream organization id (optional)"),
		baseURL:  fs.String("base-url", "", "documentation API base URL"),
		logLevel: fs.String("log-level", "", "diagnostic log level: trace|debug|info|warn|error"),
	}
}

func (c *connectFlags) load(extra config.Overrides) (config.Settings, error) {
	extra.APIKey = *c.apiKey
	extra.OrgID = *c.orgID
	extra.BaseURL = *c.baseURL
	extra.LogLevel = *c.logLevel
	return config.Load(config.LoadOptions{
		ConfigPath: strings.TrimSpace(*c.config),
		Overrides:  extra,
	})
}

func newLogger(s config.Settings) (*logrus.Logger, error) {
	return logging.New(s.LogLevel, s.LogFormat, os.Stderr)
}

func apiDialer(s config.Settings) session.Dialer {
	return func(creds pdapi.Credentials) (session.Client, error) {
		c, err := pdapi.New(pdapi.Options{
			BaseURL:      s.BaseURL,
			Credentials:  creds,
			ProjectLimit: s.ProjectLimit,
			Timeout:      s.HTTPTimeout,
			MaxBodyBytes: s.MaxBodyBytes,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func newSession(s config.Settings, log logrus.FieldLogger) *session.Session {
	return session.New(session.Options{
		Dial:           apiDialer(s),
		ExportDir:      s.ExportDir,
		ExportInterval: s.ExportInterval,
		Log:            log,
	})
}

// resolveCredentials fills a missing API key from an interactive prompt.
func resolveCredentials(s config.Settings) (pdapi.Credentials, error) {
	creds := pdapi.Credentials{APIKey: s.APIKey, OrgID: s.OrgID}
	if strings.TrimSpace(creds.APIKey) != "" {
		return creds, nil
	}
	if !stdinIsTTY() {
		return creds, nil
	}
	key, err := promptRequired("Pipedream API key")
	if err != nil {
		return creds, err
	}
	creds.APIKey = key
	return creds, nil
}

// connect loads settings, builds a session and fetches the catalog.
func connect(ctx context.Context, flags *connectFlags, extra config.Overrides) (*session.Session, config.Settings, error) {
	settings, err := flags.load(extra)
	if err != nil {
		return nil, config.Settings{}, err
	}
	log, err := newLogger(settings)
	if err != nil {
		return nil, config.Settings{}, err
	}
	creds, err := resolveCredentials(settings)
	if err != nil {
		return nil, config.Settings{}, err
	}
	sess := newSession(settings, log)
	if _, err := sess.Connect(ctx, creds); err != nil {
		return nil, settings, fmt.Errorf("load projects: %w", err)
	}
	return sess, settings, nil
}
