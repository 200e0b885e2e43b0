package config

import (
	"fmt"
	"strings"
	"text/template"
)

// configFileTmpl is the configuration file template.
var configFileTmpl = template.Must(template.New("config").Parse(`# {{ .Name }} server configurations.
#
# All values in this file can be overridden by environment variables prefixed
# with CLA_BOT_, for example CLA_BOT_HTTP_LISTEN_ADDR.

# The name of the server.
name: "{{ .Name }}"

# Authorization mode, "strict" or "permissive".
#
# Strict mode fails closed when the webhook secret or an installation id is
# missing. Use permissive only for local development.
auth_mode: "{{ .AuthMode }}"

# The HTTP server configuration.
http:
  listen_addr: "{{ .HTTP.ListenAddr }}"
  public_url: "{{ .HTTP.PublicURL }}"
  admin_token: ""

# The metrics server configuration.
stats:
  listen_addr: "{{ .Stats.ListenAddr }}"

# The database configuration.
db:
  # The database driver to use, "sqlite" or "postgres".
  driver: "{{ .DB.Driver }}"
  data_source: "{{ .DB.DataSource }}"

# The GitHub App configuration.
github:
  api_url: "{{ .GitHub.APIURL }}"
  app_id: {{ .GitHub.AppID }}
  private_key_path: "{{ .GitHub.PrivateKeyPath }}"
  webhook_secret: ""

# Bulk recheck configuration.
recheck:
  # Pull requests processed concurrently during a bulk recheck.
  concurrency: {{ .Recheck.Concurrency }}

# Cron jobs configuration.
jobs:
  # Cron spec for the periodic reconcile of all active organizations.
  reconcile: "{{ .Jobs.Reconcile }}"

# The logger configuration.
log:
  # Log format, "json", "logfmt" or "text".
  format: "{{ .Log.Format }}"
  time_format: "{{ .Log.TimeFormat }}"
`))

func newConfigFile(cfg *Config) string {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var b strings.Builder
	if err := configFileTmpl.Execute(&b, cfg); err != nil {
		panic(fmt.Errorf("execute config template: %w", err))
	}

	return b.String()
}
