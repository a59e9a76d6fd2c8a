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
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	bookingapp "github.com/salonhub/booking-sync/internal/app"
	"github.com/salonhub/booking-sync/internal/config"
)

// ServerOptions describes the configuration written for a test server
type ServerOptions struct {
	PlatformURL string
	TelegramURL string
	CompanyID   int64
	StorageType string
	DataDir     string
	// Templates maps notification types to template text; all are active
	Templates map[string]string
}

// ServerTestHelper manages the booking sync server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *bookingapp.BookingApp
	manager    config.Manager
}

// NewServerTestHelper writes the configuration and prepares a helper
// listening on a free local port
func NewServerTestHelper(ctx context.Context, opts ServerOptions) *ServerTestHelper {
	port := freePort()
	configPath := filepath.Join(opts.DataDir, "config.yaml")
	gomega.Expect(os.WriteFile(configPath, []byte(configYAML(opts)), 0600)).To(gomega.Succeed())

	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    fmt.Sprintf("127.0.0.1:%d", port),
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ConfigPath returns the path of the written configuration file
func (s *ServerTestHelper) ConfigPath() string {
	return s.configPath
}

// StartServer builds the app and starts it in the background
func (s *ServerTestHelper) StartServer() error {
	manager, err := config.NewManager(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := bookingapp.NewBookingApp(s.ctx,
		bookingapp.WithConfigManager(manager),
		bookingapp.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = app
	s.manager = manager

	go func() {
		if err := app.Start(s.ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()
	return nil
}

// StopServer gracefully stops the server
func (s *ServerTestHelper) StopServer() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Stop(5 * time.Second)
	s.app = nil
	return err
}

// ReloadConfig rewrites the configuration and applies it
func (s *ServerTestHelper) ReloadConfig(opts ServerOptions) error {
	if err := os.WriteFile(s.configPath, []byte(configYAML(opts)), 0600); err != nil {
		return err
	}
	return s.manager.ReloadConfig()
}

// WaitForServerReady waits until /readiness answers 200
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() int {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return 0
		}
		_ = resp.Body.Close()
		return resp.StatusCode
	}, timeout, 50*time.Millisecond).Should(gomega.Equal(http.StatusOK))
}

// Get performs a GET against the server
func (s *ServerTestHelper) Get(path string) (*http.Response, []byte) {
	return s.do(http.MethodGet, path, nil)
}

// Post performs a POST with a JSON body against the server
func (s *ServerTestHelper) Post(path string, body any) (*http.Response, []byte) {
	return s.do(http.MethodPost, path, body)
}

// GetJSON performs a GET and decodes the JSON response into dst,
// returning the status code
func (s *ServerTestHelper) GetJSON(path string, dst any) int {
	resp, body := s.Get(path)
	if resp.StatusCode == http.StatusOK {
		gomega.Expect(json.Unmarshal(body, dst)).To(gomega.Succeed())
	}
	return resp.StatusCode
}

func (s *ServerTestHelper) do(method, path string, payload any) (*http.Response, []byte) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, s.baseURL+path, reader)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return resp, body
}

func freePort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = l.Close()
	}()
	return l.Addr().(*net.TCPAddr).Port
}

func configYAML(opts ServerOptions) string {
	storageType := opts.StorageType
	if storageType == "" {
		storageType = config.StorageTypeFile
	}

	templates := ""
	for name, text := range opts.Templates {
		templates += fmt.Sprintf("    %s:\n      text: %q\n      active: true\n", name, text)
	}
	if templates != "" {
		templates = "  templates:\n" + templates
	}

	return fmt.Sprintf(`platform:
  baseURL: %s
  companyID: %d
  partnerToken: partner-token
  clientsPageSize: 2
  recordsPageSize: 50
sync:
  minVisits: 1
  retry:
    maxAttempts: 2
    rateLimitDelay: 10ms
    transientDelay: 10ms
    interCallDelay: 1ms
notifications:
  salonName: "Integration Salon"
  timezone: UTC
%smessaging:
  telegram:
    token: "123:integration"
    apiBaseURL: %s
storage:
  type: %s
  dataDir: %s
  sqlitePath: %s
`, opts.PlatformURL, opts.CompanyID, templates, opts.TelegramURL,
		storageType, opts.DataDir, filepath.Join(opts.DataDir, "booking-sync.db"))
}
