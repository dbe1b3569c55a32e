package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/gomega"

	"github.com/atelier-ops/atelier-sync/internal/app"
	"github.com/atelier-ops/atelier-sync/internal/config"
	"github.com/atelier-ops/atelier-sync/internal/store"
)

const (
	// OperatorID is the caller of PostSync
	OperatorID = "operator-1"

	// AdminID is the caller of GetRuns and holds the admin role
	AdminID = "admin-1"
)

// BearerToken signs a short-lived token for userID with JWTSecret
func BearerToken(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(JWTSecret))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return "Bearer " + signed
}

// SyncStats mirrors the stats block of a sync response
type SyncStats struct {
	ItemsProcessed int `json:"itemsProcessed"`
	ItemsCreated   int `json:"itemsCreated"`
	ItemsUpdated   int `json:"itemsUpdated"`
	ItemsSkipped   int `json:"itemsSkipped"`
	APICallsUsed   int `json:"apiCallsUsed"`
	MaxCalls       int `json:"maxCalls"`
}

// SyncResponse mirrors a tiny-sync response body
type SyncResponse struct {
	OK      bool                `json:"ok"`
	DryRun  bool                `json:"dryRun"`
	Entity  string              `json:"entity"`
	Error   string              `json:"error"`
	Stats   SyncStats           `json:"stats"`
	Summary []map[string]string `json:"summary"`
}

// ServerTestHelper manages the sync server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *app.SyncApp
}

// NewServerTestHelper creates a helper listening on a free local port
func NewServerTestHelper(ctx context.Context, configPath string) *ServerTestHelper {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	address := l.Addr().String()
	gomega.Expect(l.Close()).To(gomega.Succeed())

	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// StartServer builds the application from the config file and serves it
// in the background
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	syncApp, err := app.NewSyncApp(s.ctx, app.WithConfig(cfg), app.WithAddress(s.address))
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = syncApp

	go func() {
		if err := syncApp.Start(); err != nil {
			// The test fails when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// MemoryStore returns the store behind the running app
func (s *ServerTestHelper) MemoryStore() *store.MemoryStore {
	st, ok := s.app.Components().Store.(*store.MemoryStore)
	gomega.Expect(ok).To(gomega.BeTrue(), "app should run on the memory store")
	return st
}

// WaitForServerReady waits for the server to be ready to accept requests
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// Get makes a GET request to path
func (s *ServerTestHelper) Get(path string) (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + path)
}

// PostSync posts body to the tiny-sync endpoint and decodes the response
func (s *ServerTestHelper) PostSync(body string) (int, *SyncResponse) {
	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/functions/v1/tiny-sync", bytes.NewBufferString(body))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", BearerToken(OperatorID))

	resp, err := s.httpClient.Do(req)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	var out SyncResponse
	gomega.Expect(json.Unmarshal(data, &out)).To(gomega.Succeed(), string(data))
	return resp.StatusCode, &out
}

// GetRuns fetches the run log as AdminID, optionally filtered by entity
func (s *ServerTestHelper) GetRuns(entity string) []store.RunLog {
	path := "/tiny-sync/runs"
	if entity != "" {
		path += "?entity=" + entity
	}
	s.MemoryStore().GrantRole(AdminID, "admin")

	req, err := http.NewRequest(http.MethodGet, s.baseURL+path, nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	req.Header.Set("Authorization", BearerToken(AdminID))

	resp, err := s.httpClient.Do(req)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var out struct {
		Runs []store.RunLog `json:"runs"`
	}
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&out)).To(gomega.Succeed())
	return out.Runs
}
