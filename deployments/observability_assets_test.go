package deployments

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/knadh/koanf/parsers/yaml"
)

type rule struct {
	Record string
	Alert  string
	Expr   string
	Labels map[string]any
}

func TestRecordingRulesOnlyReferenceExportedMetrics(t *testing.T) {
	rules := loadRules(t, "insightdeck_recording_rules.yaml")

	required := []string{
		"insightdeck:slo_http_error_rate_5m",
		"insightdeck:slo_llm_latency_seconds_p95",
		"insightdeck:slo_llm_error_ratio_15m",
		"insightdeck:slo_warehouse_query_seconds_p95",
		"insightdeck:slo_export_failures_30m",
	}
	records := map[string]string{}
	for _, r := range rules {
		records[r.Record] = r.Expr
	}
	for _, name := range required {
		if _, ok := records[name]; !ok {
			t.Fatalf("recording rules missing record %q", name)
		}
	}

	exported := []string{
		"insightdeck_http_requests_total",
		"insightdeck_llm_latency_seconds_bucket",
		"insightdeck_llm_requests_total",
		"insightdeck_llm_tokens_total",
		"insightdeck_warehouse_query_duration_seconds_bucket",
		"insightdeck_exports_total",
	}
	for name, expr := range records {
		found := false
		for _, metric := range exported {
			if strings.Contains(expr, metric) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("record %q does not reference an exported metric: %s", name, expr)
		}
	}
}

func TestAlertRulesCarrySeverityAndUseRecords(t *testing.T) {
	rules := loadRules(t, "insightdeck_rules.yaml")
	if len(rules) == 0 {
		t.Fatal("no alert rules")
	}
	for _, r := range rules {
		if r.Alert == "" {
			t.Fatalf("rule without alert name: %#v", r)
		}
		severity, _ := r.Labels["severity"].(string)
		if severity != "critical" && severity != "warning" {
			t.Fatalf("alert %s severity = %q", r.Alert, severity)
		}
		if !strings.Contains(r.Expr, "insightdeck:slo_") {
			t.Fatalf("alert %s does not use a recording rule: %s", r.Alert, r.Expr)
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	text := readAsset(t, "observability", "prometheus", "prometheus-scrape.example.yaml")

	for _, token := range []string{
		"metrics_path: /v1/metrics",
		"job_name: insightdeck-api",
		"insightdeck_rules.yaml",
		"insightdeck_recording_rules.yaml",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

func TestComposeFileParses(t *testing.T) {
	parsed, err := yaml.Parser().Unmarshal([]byte(readAsset(t, "compose", "docker-compose.yaml")))
	if err != nil {
		t.Fatalf("parse compose file: %v", err)
	}
	services, ok := parsed["services"].(map[string]any)
	if !ok {
		t.Fatalf("services = %#v", parsed["services"])
	}
	for _, name := range []string{"postgres", "minio", "prometheus"} {
		if _, ok := services[name]; !ok {
			t.Fatalf("compose file missing service %q", name)
		}
	}
}

func loadRules(t *testing.T, name string) []rule {
	t.Helper()
	parsed, err := yaml.Parser().Unmarshal([]byte(readAsset(t, "observability", "prometheus", name)))
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	groups, ok := parsed["groups"].([]any)
	if !ok || len(groups) == 0 {
		t.Fatalf("%s: groups = %#v", name, parsed["groups"])
	}

	var out []rule
	for _, g := range groups {
		group, _ := g.(map[string]any)
		entries, _ := group["rules"].([]any)
		for _, e := range entries {
			entry, _ := e.(map[string]any)
			r := rule{}
			r.Record, _ = entry["record"].(string)
			r.Alert, _ = entry["alert"].(string)
			r.Expr, _ = entry["expr"].(string)
			r.Labels, _ = entry["labels"].(map[string]any)
			out = append(out, r)
		}
	}
	return out
}

func readAsset(t *testing.T, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{repoRoot(t), "deployments"}, parts...)...)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
