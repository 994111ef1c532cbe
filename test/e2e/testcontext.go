package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	promdto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const (
	Bearer = "e2e-bearer"

	USGSAttempts = 3
)

// TestContext runs the service binary against a broken USGS feed.
type TestContext struct {
	BaseURL    string
	MetricsURL string

	usgs      *httptest.Server
	usgsCalls *atomic.Int32

	process process
	client  *http.Client
}

func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find a free port: %w", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port, nil
}

func CreateTestContext(binary string) (TestContext, error) {
	calls := &atomic.Int32{}

	usgs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ret := TestContext{
		usgs:      usgs,
		usgsCalls: calls,
		client:    &http.Client{Timeout: 10 * time.Second},
	}

	port, err := freePort()
	if err != nil {
		return ret, err
	}

	metricsPort, err := freePort()
	if err != nil {
		return ret, err
	}

	ret.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	ret.MetricsURL = fmt.Sprintf("http://127.0.0.1:%d/metrics", metricsPort)

	ret.process, err = startProcess(fmt.Sprintf("%s serve", binary), ret.Env(port, metricsPort))
	if err != nil {
		return ret, err
	}

	err = retry.Do(
		func() error {
			resp, err := ret.client.Get(ret.BaseURL + "/health")
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}

			return nil
		},
		retry.Attempts(50),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		return ret, fmt.Errorf("service not ready (%w): %s", err, ret.process.output.String())
	}

	return ret, nil
}

// Env is the environment the binary runs with.
func (t TestContext) Env(port, metricsPort int) []string {
	return []string{
		fmt.Sprintf("PRAEVISIO_SERVER_PORT=%d", port),
		fmt.Sprintf("PRAEVISIO_METRICS_PORT=%d", metricsPort),
		"PRAEVISIO_BEARER_TOKEN=" + Bearer,
		"PRAEVISIO_LOGS_ENCODER=json",
		"USGS_API_URL=" + t.usgs.URL,
		fmt.Sprintf("USGS_RETRY_ATTEMPTS=%d", USGSAttempts),
		"USGS_RETRY_BASE_DELAY_MS=1",
	}
}

func (t TestContext) Close() error {
	defer t.usgs.Close()

	return t.process.stop()
}

func (t TestContext) USGSCalls() int {
	return int(t.usgsCalls.Load())
}

func (t TestContext) ResetUSGSCalls() {
	t.usgsCalls.Store(0)
}

func (t TestContext) post(path, body string, bearer bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, t.BaseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if bearer {
		req.Header.Set("Authorization", "Bearer "+Bearer)
	}

	return t.client.Do(req)
}

func (t TestContext) IssueToken() (string, error) {
	resp, err := t.post("/api/eternal-vigilance/token", "{}", true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var ret struct {
		Token string `json:"token"`
	}

	err = json.NewDecoder(resp.Body).Decode(&ret)
	if err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}

	return ret.Token, nil
}

// Emit returns the response status code.
func (t TestContext) Emit(message string) (int, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return 0, err
	}

	resp, err := t.post("/api/eternal-vigilance/emit", string(body), true)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

func (t TestContext) Report() (string, error) {
	resp, err := t.post("/api/eternal-vigilance/report", "", false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// Seismic returns the raw body and the mock header.
func (t TestContext) Seismic() (string, string, error) {
	resp, err := t.client.Get(t.BaseURL + "/api/seismic/activity")
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	return string(body), resp.Header.Get("X-Praevisio-Mock"), nil
}

// Stream is one open event stream.
type Stream struct {
	reader *bufio.Reader
	body   io.Closer
	cancel context.CancelFunc
}

func (t TestContext) OpenStream(token string) (Stream, error) {
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/api/eternal-vigilance/stream?token="+token, nil)
	if err != nil {
		cancel()

		return Stream{}, err
	}

	// No client timeout: the stream stays open
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()

		return Stream{}, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()

		return Stream{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return Stream{reader: bufio.NewReader(resp.Body), body: resp.Body, cancel: cancel}, nil
}

// Next returns the lines of the next frame.
func (s Stream) Next() ([]string, error) {
	ret := []string{}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return ret, err
		}

		line = strings.TrimSuffix(line, "\n")

		switch {
		case line == "" && len(ret) > 0:
			return ret, nil
		case line == "", strings.HasPrefix(line, ":"):
			// keep-alive comment
			continue
		}

		ret = append(ret, line)
	}
}

func (s Stream) Close() {
	s.cancel()
	s.body.Close()
}

var ErrMetricNotFound = errors.New("metric not found")

// Metric returns the metric family exposed under name.
func (t TestContext) Metric(name string) (*promdto.MetricFamily, error) {
	resp, err := t.client.Get(t.MetricsURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	parser := expfmt.TextParser{}

	metricFamilies, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}

	ret, ok := metricFamilies[name]
	if !ok {
		return nil, ErrMetricNotFound
	}

	return ret, nil
}
