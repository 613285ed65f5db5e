// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// ProbeStatus is the result of one health probe.
type ProbeStatus struct {
	Probe   string `json:"probe"`
	Healthy bool   `json:"healthy"`
	Code    int    `json:"code,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	addr       string
	timeout    time.Duration
}

var probes = []string{"liveness", "readiness"}

// newStatusCmd creates the status subcommand.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the health of a running portal",
		Long: `Query the liveness and readiness probes of a running portal. The probe
address defaults to metrics_addr from the config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().StringVar(&cfg.addr, "addr", "", "metrics/health address (default from config)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "timeout for each probe")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	addr := cfg.addr
	if addr == "" {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr = loaded.MetricsAddr
	}
	if addr == "" {
		return oops.Code("STATUS_NO_ADDR").Errorf("metrics_addr is disabled; pass --addr")
	}

	client := &http.Client{Timeout: cfg.timeout}
	statuses := make([]ProbeStatus, 0, len(probes))
	for _, probe := range probes {
		statuses = append(statuses, queryProbe(cmd.Context(), client, addr, probe))
	}

	if cfg.jsonOutput {
		out, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(out)
	} else {
		cmd.Println(formatStatusTable(statuses))
	}

	for _, s := range statuses {
		if !s.Healthy {
			return oops.Code("STATUS_UNHEALTHY").With("probe", s.Probe).Errorf("portal %s probe failed", s.Probe)
		}
	}
	return nil
}

// queryProbe calls one health endpoint.
func queryProbe(ctx context.Context, client *http.Client, addr, probe string) ProbeStatus {
	status := ProbeStatus{Probe: probe}
	if ctx == nil {
		ctx = context.Background()
	}

	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/healthz/"+probe, nil)
	if err != nil {
		status.Error = fmt.Sprintf("invalid address: %v", err)
		return status
	}

	resp, err := client.Do(req)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck // detail is best effort
	status.Code = resp.StatusCode
	status.Detail = strings.TrimSpace(string(body))
	status.Healthy = resp.StatusCode == http.StatusOK
	return status
}

// formatStatusTable formats the statuses as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t------")
	for _, s := range statuses {
		state := "healthy"
		if !s.Healthy {
			state = "unhealthy"
		}
		code := "-"
		if s.Code != 0 {
			code = fmt.Sprint(s.Code)
		}
		detail := s.Detail
		if s.Error != "" {
			detail = s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Probe, state, code, detail)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the statuses as JSON.
func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_ENCODE_FAILED").Wrap(err)
	}
	return string(data), nil
}
