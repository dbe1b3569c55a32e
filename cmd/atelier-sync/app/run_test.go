package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-sync/internal/app"
	"github.com/atelier-ops/atelier-sync/internal/config"
	pkgsync "github.com/atelier-ops/atelier-sync/internal/sync"
)

const testToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newFakeERP(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/") {
		case "info.php":
			_, _ = w.Write([]byte(`{"retorno":{"status":"OK","conta":{"razao_social":"Atelier"}}}`))
		case "contatos.pesquisa.php":
			_, _ = w.Write([]byte(`{"retorno":{"status":"OK","pagina":1,"numero_paginas":1,"contatos":[` +
				`{"contato":{"id":"C1","nome":"Maria Silva","email":"maria@example.com"}}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newRunCommand returns a command with its own copy of the run flags
func newRunCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("entity", "", "")
	cmd.Flags().Bool("dry-run", false, "")
	cmd.Flags().String("since", "", "")
	cmd.Flags().Bool("test-only", false, "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestRequestFromFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want pkgsync.Request
	}{
		{
			name: "defaults",
			want: pkgsync.Request{},
		},
		{
			name: "dry run since",
			args: []string{"--entity", "products", "--dry-run", "--since", "2026-10-01"},
			want: pkgsync.Request{Entity: "products", DryRun: true, Since: ptr("2026-10-01")},
		},
		{
			name: "test only",
			args: []string{"--test-only"},
			want: pkgsync.Request{TestOnly: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := newRunCommand(t, tt.args...)

			got, err := requestFromFlags(cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	erpSrv := newFakeERP(t)
	cfg := &config.Config{ERP: config.ERPConfig{BaseURL: erpSrv.URL, Token: testToken, MaxCalls: 3}}

	tests := []struct {
		name    string
		req     pkgsync.Request
		wantOut string
		wantErr string
	}{
		{
			name:    "test only",
			req:     pkgsync.Request{TestOnly: true},
			wantOut: `{"ok":true}`,
		},
		{
			name: "dry run contacts",
			req:  pkgsync.Request{Entity: "contacts", DryRun: true},
		},
		{
			name:    "unknown entity",
			req:     pkgsync.Request{Entity: "invoices"},
			wantErr: "sync failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := &bytes.Buffer{}
			err := runOnce(context.Background(), cfg, tt.req, out)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantOut != "" {
				assert.JSONEq(t, tt.wantOut, out.String())
				return
			}
			assert.Contains(t, out.String(), `"dryRun": true`)
			assert.Contains(t, out.String(), `"entity": "contacts"`)
		})
	}
}

func TestRunOnce_InvalidSchedule(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Schedule: &config.ScheduleConfig{Timezone: "Mars/Olympus"}}
	err := runOnce(context.Background(), cfg, pkgsync.Request{TestOnly: true}, &bytes.Buffer{},
		app.WithAddress("127.0.0.1:0"))
	require.ErrorContains(t, err, "failed to create application")
}

func TestRunSync_MissingConfig(t *testing.T) {
	t.Parallel()

	cmd := newRunCommand(t, "--config", "does-not-exist.yaml", "--test-only")
	err := runSync(cmd, nil)
	require.ErrorContains(t, err, "failed to load configuration")
}

func ptr[T any](v T) *T { return &v }
