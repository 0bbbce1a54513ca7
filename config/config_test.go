package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTempConfig writes content to a temporary YAML file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "BINANCE_API_KEY", "BINANCE_API_SECRET",
		"KUCOIN_API_KEY", "KUCOIN_API_SECRET", "KUCOIN_API_PASSPHRASE",
		"BYBIT_API_KEY", "BYBIT_API_SECRET", "AWS_REGION", "AUDIT_BUCKET",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `cryptorank:
  name: "TestApp"
  version: "1.0"
reader:
  max_workers: 2
ranking:
  granularities: [1, 5]
  top_k: 4
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Cryptorank.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Cryptorank.Name)
	}
	if cfg.Reader.MaxWorkers != 2 {
		t.Errorf("unexpected max workers: %d", cfg.Reader.MaxWorkers)
	}
	if len(cfg.Ranking.Granularities) != 2 || cfg.Ranking.Granularities[1] != 5 {
		t.Errorf("unexpected granularities: %v", cfg.Ranking.Granularities)
	}
	if cfg.Ranking.TopK != 4 {
		t.Errorf("unexpected top_k: %d", cfg.Ranking.TopK)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Reader.Timeout != 10*time.Second {
		t.Errorf("unexpected timeout default: %v", cfg.Reader.Timeout)
	}
	if cfg.Reader.RateLimit.RequestsPerSecond != 5 || cfg.Reader.RateLimit.BurstSize != 1 {
		t.Errorf("unexpected rate limit defaults: %+v", cfg.Reader.RateLimit)
	}
	if cfg.Ranking.ATRPeriod != 14 || cfg.Ranking.TopK != 10 {
		t.Errorf("unexpected ranking defaults: %+v", cfg.Ranking)
	}
	if got := cfg.Ranking.Granularities; len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Errorf("unexpected granularity defaults: %v", got)
	}
	if cfg.Series.Granularity != 30 || cfg.Series.CandleLimit != 1000 {
		t.Errorf("unexpected series defaults: %+v", cfg.Series)
	}
	if len(cfg.Universe.Denylist) != 10 || cfg.Universe.Denylist[2] != "USDC" {
		t.Errorf("unexpected denylist default: %v", cfg.Universe.Denylist)
	}
	if cfg.Exchanges.InventoryA != ExchangeBinance || cfg.Exchanges.Prices != ExchangeKucoin {
		t.Errorf("unexpected role defaults: %+v", cfg.Exchanges)
	}
	if cfg.Exchanges.Bybit.Quote != "USDT" {
		t.Errorf("unexpected quote default: %s", cfg.Exchanges.Bybit.Quote)
	}
	if cfg.Pipeline.Scope != ScopeSelection {
		t.Errorf("unexpected scope default: %s", cfg.Pipeline.Scope)
	}
}

func TestEmptyDenylistIsKept(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("universe:\n  denylist: []\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Universe.Denylist) != 0 {
		t.Fatalf("explicit empty denylist replaced by defaults: %v", cfg.Universe.Denylist)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BINANCE_API_KEY", " key ")
	t.Setenv("KUCOIN_API_PASSPHRASE", "phrase")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("AUDIT_BUCKET", "run-audit")

	cfg, err := Parse([]byte("audit:\n  archive:\n    enabled: true\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Exchanges.Binance.APIKey != "key" {
		t.Errorf("unexpected binance key: %q", cfg.Exchanges.Binance.APIKey)
	}
	if cfg.Exchanges.Kucoin.Passphrase != "phrase" {
		t.Errorf("unexpected kucoin passphrase: %q", cfg.Exchanges.Kucoin.Passphrase)
	}
	if cfg.Audit.Archive.Bucket != "run-audit" || cfg.Audit.Archive.Region != "eu-west-1" {
		t.Errorf("unexpected archive settings: %+v", cfg.Audit.Archive)
	}
}

func TestValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"unsupported granularity", "ranking:\n  granularities: [1, 15]\n", "Granularities"},
		{"duplicate granularity", "ranking:\n  granularities: [1, 1]\n", "Granularities"},
		{"same inventories", "exchanges:\n  inventory_a: kucoin\n  inventory_b: kucoin\n", "must name different exchanges"},
		{"unknown exchange", "exchanges:\n  candles: kraken\n", "Candles"},
		{"limit below period", "ranking:\n  candle_limit: 14\n", "candle_limit must be greater"},
		{"bad scope", "pipeline:\n  scope: everything\n", "Scope"},
		{"archive without bucket", "audit:\n  archive:\n    enabled: true\n    region: us-east-1\n", "bucket is required"},
		{"bad bucket", "audit:\n  archive:\n    enabled: true\n    region: us-east-1\n    bucket: Bad_Bucket\n", "is invalid"},
		{"bad local ip", "exchanges:\n  binance:\n    local_ip: nope\n", "LocalIP"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Parse([]byte(c.content))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("error %q does not mention %q", err, c.want)
			}
		})
	}
}

func TestProductionRequiresJSONLogs(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	if _, err := Parse([]byte("logging:\n  format: text\n")); err == nil {
		t.Fatalf("expected text logs to be rejected in production")
	}
}

func TestRoles(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("exchanges:\n  inventory_a: bybit\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	roles := cfg.Roles()
	if strings.Join(roles, ",") != "bybit,kucoin,binance" {
		t.Fatalf("unexpected roles: %v", roles)
	}
	if cfg.Exchange("BYBIT").Quote != "USDT" {
		t.Fatalf("exchange lookup should be case-insensitive")
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "config.yml")
	prodPath := filepath.Join(dir, "config.production.yml")
	stagingPath := filepath.Join(dir, "config.staging.yml")
	if err := os.WriteFile(prodPath, []byte("cryptorank: {}\n"), 0o600); err != nil {
		t.Fatalf("write production config: %v", err)
	}
	envPaths := map[string]string{
		EnvironmentProduction: prodPath,
		EnvironmentStaging:    stagingPath,
	}

	cases := []struct {
		name string
		env  string
		path string
		want string
	}{
		{name: "production file present", env: "production", path: "", want: prodPath},
		{name: "alias", env: "prod", path: defaultPath, want: prodPath},
		{name: "explicit path wins", env: "production", path: "custom.yml", want: "custom.yml"},
		{name: "staging file missing", env: "staging", path: "", want: defaultPath},
		{name: "development", env: "", path: "", want: defaultPath},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tc.env)
			if got := resolveEnvSpecificPath(tc.path, defaultPath, envPaths); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestResolvePathWithoutEnvironmentFiles(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("missing production file should fall back to %s, got %s", DefaultPath, got)
	}

	t.Setenv("APP_ENV", "")
	if AppEnvironment() != EnvironmentDevelopment {
		t.Errorf("unexpected environment: %s", AppEnvironment())
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}
