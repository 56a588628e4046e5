package testkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sha1n/search-every/internal/app"
	"github.com/sha1n/search-every/internal/config"
	"github.com/spf13/pflag"
)

// Property names published by ServerService.Start.
const (
	PropBaseURL  = "base_url"
	PropSSEURL   = "sse_url"
	PropSettings = "settings"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type properties map[string]any

func (p properties) GetProperties() map[string]any {
	return p
}

func (p properties) GetProperty(name string) (any, bool) {
	val, ok := p[name]
	return val, ok
}

type testEnv struct {
	services []Service
	props    properties
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnv{
		services: services,
		props:    make(properties),
	}
}

// Start starts services in order, merging their properties. The first
// failure stops startup.
func (e *testEnv) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", s.GetName(), err)
		}
		for k, v := range props {
			e.props[k] = v
		}
	}
	return e.props, nil
}

// Stop stops services in reverse order and joins their errors.
func (e *testEnv) Stop() error {
	var errs []error
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *testEnv) GetContext() TestEnvContext {
	return e.props
}

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port      int      // Uses free port if 0
	Transport string   // Defaults to "sse"
	AuthType  string   // Defaults to "none"
	Host      string   // Defaults to "localhost"
	APIKeys   []string // Used with AuthType "apikey"
	StateDir  string   // Defaults to a test temp dir
	ScanRoots []string // Defaults to a test temp dir
}

// NewTestFlags creates a configured pflag.FlagSet for testing. Auto scan is
// off and metrics are on.
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	o := FlagOptions{}
	if opts != nil {
		o = *opts
	}
	if o.Port == 0 {
		o.Port = MustGetFreePort(t)
	}
	if o.Transport == "" {
		o.Transport = config.TransportSSE
	}
	if o.AuthType == "" {
		o.AuthType = config.AuthTypeNone
	}
	if o.Host == "" {
		o.Host = "localhost"
	}
	if o.StateDir == "" {
		o.StateDir = t.TempDir()
	}
	if len(o.ScanRoots) == 0 {
		o.ScanRoots = []string{t.TempDir()}
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	_ = flags.Set("port", fmt.Sprintf("%d", o.Port))
	_ = flags.Set("transport", o.Transport)
	_ = flags.Set("auth-type", o.AuthType)
	_ = flags.Set("host", o.Host)
	_ = flags.Set("state-dir", o.StateDir)
	_ = flags.Set("scan-roots", strings.Join(o.ScanRoots, ","))
	_ = flags.Set("auto-scan", "false")
	_ = flags.Set("metrics", "true")
	if len(o.APIKeys) > 0 {
		_ = flags.Set("auth-api-keys", strings.Join(o.APIKeys, ","))
	}

	return flags
}

// ServerService runs the SSE server in process, built from flags the same
// way the binary builds it.
type ServerService struct {
	flags   *pflag.FlagSet
	server  *http.Server
	cleanup func()
	errc    chan error
}

// NewServerService creates a service for the given flags.
func NewServerService(flags *pflag.FlagSet) *ServerService {
	return &ServerService{flags: flags}
}

// GetName implements Service.
func (s *ServerService) GetName() string {
	return "search-every-sse"
}

// Start loads settings, starts the server and waits until /health answers.
func (s *ServerService) Start() (map[string]any, error) {
	settings, err := config.LoadSettingsWithFlags(s.flags)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, err
	}

	mcpServer, cleanup, err := app.CreateMCPServer(settings, "test")
	if err != nil {
		return nil, err
	}
	s.cleanup = cleanup

	srv, err := app.NewSSEServer(mcpServer, settings)
	if err != nil {
		cleanup()
		return nil, err
	}
	s.server = srv
	s.errc = make(chan error, 1)
	go func() { s.errc <- srv.ListenAndServe() }()

	baseURL := fmt.Sprintf("http://%s", srv.Addr)
	if err := waitHealthy(baseURL+"/health", 5*time.Second); err != nil {
		_ = s.Stop()
		return nil, err
	}

	return map[string]any{
		PropBaseURL:  baseURL,
		PropSSEURL:   baseURL + "/sse",
		PropSettings: settings,
	}, nil
}

// Stop shuts the server down and closes the service behind it.
func (s *ServerService) Stop() error {
	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Streams left open by clients keep Shutdown waiting; cut them off.
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = s.server.Close()
		}
		if serveErr := <-s.errc; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			err = errors.Join(err, serveErr)
		}
		s.server = nil
	}
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
	return err
}

func waitHealthy(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server not healthy after %s: %v", timeout, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
