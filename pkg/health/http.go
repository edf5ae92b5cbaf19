package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a single console request
const DefaultRequestTimeout = 10 * time.Second

// ConsoleUp accepts any answer of a running web console. Redirects and
// authentication challenges count: consoles send both before login.
func ConsoleUp(code int) bool {
	return code < http.StatusBadRequest ||
		code == http.StatusUnauthorized ||
		code == http.StatusForbidden
}

// HTTPChecker fetches the web console of a node process
type HTTPChecker struct {
	URL string

	// Accept decides whether a status code means the console is up
	Accept func(code int) bool

	Client *http.Client
}

// NewHTTPChecker checks url with ConsoleUp. Consoles serve self-signed
// certificates and redirect to their login page; neither is followed up.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:    url,
		Accept: ConsoleUp,
		Client: &http.Client{
			Timeout: DefaultRequestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Check issues one GET against URL
func (h *HTTPChecker) Check(ctx context.Context) (result Result) {
	result.CheckedAt = time.Now()
	defer func() { result.Duration = time.Since(result.CheckedAt) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		result.Message = fmt.Sprintf("invalid console URL %s: %v", h.URL, err)
		return result
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		result.Message = fmt.Sprintf("console not reachable: %v", err)
		return result
	}
	_ = resp.Body.Close()

	result.Healthy = h.Accept(resp.StatusCode)
	result.Message = fmt.Sprintf("console answered %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return result
}

func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}
