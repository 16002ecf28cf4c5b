package supacheck

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type showPayload struct {
	SettingsFile string   `json:"settings_file"`
	Settings     Settings `json:"settings"`
}

func runShow(cfg Config, stdout io.Writer) error {
	settings, err := loadSettings(cfg.SettingsFile)
	if err != nil {
		return err
	}
	settings.SupabaseKey = maskSecret(settings.SupabaseKey)
	settings.DBURL = maskDSN(settings.DBURL)

	data, err := json.MarshalIndent(showPayload{SettingsFile: cfg.SettingsFile, Settings: settings}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal show output: %w", err)
	}

	fmt.Fprintln(stdout, string(data))
	return nil
}

func maskSecret(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

var dsnPasswordPattern = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// maskDSN hides the password of a URL, MySQL or key=value DSN.
func maskDSN(v string) string {
	s := strings.TrimSpace(v)
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil || u.User == nil {
			return v
		}
		if _, ok := u.User.Password(); !ok {
			return v
		}
		return u.Redacted()
	}

	if strings.Contains(s, "@") {
		if mc, err := mysql.ParseDSN(s); err == nil {
			if mc.Passwd == "" {
				return v
			}
			mc.Passwd = "xxxxx"
			return mc.FormatDSN()
		}
	}

	return dsnPasswordPattern.ReplaceAllString(s, "${1}xxxxx")
}
