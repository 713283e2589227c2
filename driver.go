package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// PortalResponse is one intercepted XHR response.
type PortalResponse struct {
	URL    string
	Method string
	Status int
	Body   []byte
}

func (r *PortalResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// ResponseMatcher decides whether an intercepted response is the one a
// workflow is waiting for. Pre-flight OPTIONS requests are filtered out
// before the matcher runs.
type ResponseMatcher func(requestURL, method string) bool

// matchEndpoint matches a request URL exactly.
func matchEndpoint(endpoint string) ResponseMatcher {
	return func(requestURL, _ string) bool {
		return requestURL == endpoint
	}
}

// matchEndpointQuery matches an endpoint whose query string carries the
// given parameter value. Used to couple a verify wait to the submitted ID.
func matchEndpointQuery(endpoint, param, value string) ResponseMatcher {
	return func(requestURL, _ string) bool {
		if !strings.HasPrefix(requestURL, endpoint) {
			return false
		}
		parsed, err := url.Parse(requestURL)
		if err != nil {
			return false
		}
		return parsed.Query().Get(param) == value
	}
}

// ResponseWait blocks until the registered matcher fires or the operation
// timeout elapses. Register before triggering the action that causes the
// request, or the response can be missed.
type ResponseWait func() (*PortalResponse, error)

// Driver is the browser capability surface workflows are written against.
// The production implementation drives a rod page; tests substitute a fake.
type Driver interface {
	Navigate(pageURL string) error
	FillField(selector, value string) error
	Click(selector string) error
	ExpectResponse(match ResponseMatcher) ResponseWait
	CurrentURL() (string, error)
	Cookies() ([]SessionCookie, error)
	SetCookies(cookies []SessionCookie) error
	SetLocalStorage(key, value string) error
}

// rodDriver shares one page for the whole process lifetime. All calls are
// strictly sequential; the page's navigation state and cookie jar are
// mutated in place.
type rodDriver struct {
	config   *Config
	logger   *zap.Logger
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
}

func NewDriver(config *Config, logger *zap.Logger) *rodDriver {
	return &rodDriver{config: config, logger: logger}
}

// Launch starts Chrome and opens the shared stealth page.
func (d *rodDriver) Launch() error {
	// Disable leakless mode on Windows to prevent deadlock
	// See: https://github.com/go-rod/rod/issues/853
	useLeakless := runtime.GOOS != "windows"

	d.launcher = launcher.New().
		Leakless(useLeakless).
		Headless(d.config.Headless)

	if d.config.BrowserProfilePath != "" {
		d.launcher = d.launcher.UserDataDir(d.config.BrowserProfilePath)
	}

	// Prefer system Chrome; avoids the Chromium download on first run.
	if chromePath, exists := launcher.LookPath(); exists {
		d.launcher = d.launcher.Bin(chromePath)
		d.logger.Debug("using system chrome", zap.String("path", chromePath))
	}

	controlURL, err := d.launcher.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	d.browser = browser

	page, err := stealth.Page(browser)
	if err != nil {
		return fmt.Errorf("failed to create stealth page: %w", err)
	}
	d.page = page

	d.logger.Debug("browser launched", zap.Bool("headless", d.config.Headless))
	return nil
}

func (d *rodDriver) Close() {
	if d.page != nil {
		d.page.Close()
	}
	if d.browser != nil {
		d.browser.Close()
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
	}
}

func (d *rodDriver) Navigate(pageURL string) error {
	page := d.page.Timeout(d.config.OperationTimeout())
	if err := page.Navigate(pageURL); err != nil {
		return fmt.Errorf("navigate to %s: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("load %s: %w", pageURL, err)
	}
	return nil
}

func (d *rodDriver) FillField(selector, value string) error {
	el, err := d.page.Timeout(d.config.OperationTimeout()).Element(selector)
	if err != nil {
		return fmt.Errorf("field %s not found: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select field %s: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill field %s: %w", selector, err)
	}
	return nil
}

func (d *rodDriver) Click(selector string) error {
	el, err := d.page.Timeout(d.config.OperationTimeout()).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// ExpectResponse subscribes to the page's network events and returns a wait
// that resolves on the first finished response whose URL satisfies the
// matcher and whose method is not a pre-flight. Methods are captured from
// request events because response events do not carry them.
func (d *rodDriver) ExpectResponse(match ResponseMatcher) ResponseWait {
	page := d.page.Timeout(d.config.OperationTimeout())

	methods := make(map[proto.NetworkRequestID]string)
	var matched *PortalResponse
	var pending proto.NetworkRequestID

	wait := page.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			methods[e.RequestID] = e.Request.Method
		},
		func(e *proto.NetworkResponseReceived) {
			if pending != "" {
				return
			}
			method := methods[e.RequestID]
			if method == http.MethodOptions || !match(e.Response.URL, method) {
				return
			}
			pending = e.RequestID
			matched = &PortalResponse{
				URL:    e.Response.URL,
				Method: method,
				Status: e.Response.Status,
			}
		},
		func(e *proto.NetworkLoadingFinished) bool {
			// Body is only retrievable once loading finished.
			return pending != "" && e.RequestID == pending
		},
	)

	return func() (*PortalResponse, error) {
		wait()
		if matched == nil {
			return nil, timeoutErr()
		}

		body, err := proto.NetworkGetResponseBody{RequestID: pending}.Call(d.page)
		if err != nil {
			d.logger.Debug("response body unavailable", zap.String("url", matched.URL), zap.Error(err))
			return matched, nil
		}
		if body.Base64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(body.Body)
			if err != nil {
				return nil, fmt.Errorf("decode response body: %w", err)
			}
			matched.Body = decoded
		} else {
			matched.Body = []byte(body.Body)
		}
		return matched, nil
	}
}

func (d *rodDriver) CurrentURL() (string, error) {
	info, err := d.page.Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

func (d *rodDriver) Cookies() ([]SessionCookie, error) {
	cookies, err := d.page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}

	out := make([]SessionCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, SessionCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

func (d *rodDriver) SetCookies(cookies []SessionCookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		})
	}
	if len(params) == 0 {
		return nil
	}
	if err := d.page.SetCookies(params); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

func (d *rodDriver) SetLocalStorage(key, value string) error {
	_, err := d.page.Evaluate(&rod.EvalOptions{
		JS: `(key, value) => {
			window.localStorage.setItem(key, value);
		}`,
		JSArgs:  []interface{}{key, value},
		ByValue: true,
	})
	if err != nil {
		return fmt.Errorf("set local storage %s: %w", key, err)
	}
	return nil
}
