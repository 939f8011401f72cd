package dlipower

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/port"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const (
	pathLogin  = "/login.tgi"
	pathStatus = "/index.htm"
	pathOutlet = "/outlet"
)

type PowerSwitchConfig struct {
	Host      string
	Port      uint
	Username  string
	Password  string
	Timeout   time.Duration
	CycleTime time.Duration
}

// PowerSwitch talks to the web interface of a Digital Loggers relay unit.
// The unit keeps a single login session, so requests are serialised.
type PowerSwitch struct {
	cfg     PowerSwitchConfig
	baseURL *url.URL
	client  *http.Client
	logger  *zap.Logger

	mu         sync.Mutex
	loggedIn   bool
	basicAuth  bool
	outletsLen int
}

func NewPowerSwitch(cfg PowerSwitchConfig, logger *zap.Logger) (*PowerSwitch, error) {
	host := cfg.Host
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid relay host %q: %w", cfg.Host, err)
	}
	if cfg.Port > 0 {
		base.Host = fmt.Sprintf("%s:%d", base.Hostname(), cfg.Port)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &PowerSwitch{
		cfg:     cfg,
		baseURL: base,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		logger: logger.With(zap.String("relay", cfg.Host)),
	}, nil
}

func (p *PowerSwitch) Hostname() string {
	return p.cfg.Host
}

func (p *PowerSwitch) Verify() error {
	if _, err := p.QueryAll(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}
	return nil
}

func (p *PowerSwitch) QueryAll() (domain.StatusSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	body, err := p.get(pathStatus, "")
	if err != nil {
		return nil, err
	}
	snapshot, err := ParseStatusPage(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCommunication, err)
	}
	p.outletsLen = len(snapshot)
	return snapshot, nil
}

func (p *PowerSwitch) SetOutlet(index int, on bool) error {
	action := "OFF"
	if on {
		action = "ON"
	}
	return p.outletAction(index, action)
}

// CycleOutlet asks the firmware to power cycle the outlet, the off delay is
// the one configured on the unit.
func (p *PowerSwitch) CycleOutlet(index int) error {
	return p.outletAction(index, "CCL")
}

func (p *PowerSwitch) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *PowerSwitch) outletAction(index int, action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// the upper bound is only known once QueryAll has read the table
	if index < 1 || (p.outletsLen > 0 && index > p.outletsLen) {
		return domain.InvalidOutletError(index, p.outletsLen)
	}
	p.logger.Debug("dlipower: outlet action", zap.Int("outlet", index), zap.String("action", action))
	// the firmware expects outlet?3=ON, a key without url.Values encoding
	_, err := p.get(pathOutlet, fmt.Sprintf("%d=%s", index, action))
	return err
}

// get fetches a page, logging in first when needed. A login page served in
// place of the requested one means the session expired and triggers one
// re-login.
func (p *PowerSwitch) get(path string, rawQuery string) (string, error) {
	if !p.loggedIn {
		if err := p.login(); err != nil {
			return "", err
		}
	}
	body, status, err := p.doGet(path, rawQuery)
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden || isLoginPage(body) {
		p.loggedIn = false
		if err := p.login(); err != nil {
			return "", err
		}
		body, status, err = p.doGet(path, rawQuery)
		if err != nil {
			return "", err
		}
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: GET %s returned %d", domain.ErrCommunication, path, status)
	}
	if isLoginPage(body) {
		return "", fmt.Errorf("%w: login rejected", domain.ErrConnectivity)
	}
	return body, nil
}

func (p *PowerSwitch) doGet(path string, rawQuery string) (string, int, error) {
	u := *p.baseURL
	u.Path = path
	u.RawQuery = rawQuery

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return "", 0, err
	}
	if p.basicAuth {
		req.SetBasicAuth(p.cfg.Username, p.cfg.Password)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", domain.ErrCommunication, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", domain.ErrCommunication, err)
	}
	return string(b), resp.StatusCode, nil
}

// login fetches the challenge from the root page and posts the hashed
// credentials. Units without a challenge form get HTTP basic auth instead.
func (p *PowerSwitch) login() error {
	u := *p.baseURL
	u.Path = "/"
	resp, err := p.client.Get(u.String())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	fields, err := ParseFormInputs(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCommunication, err)
	}
	challenge, ok := fields["Challenge"]
	if !ok {
		p.logger.Debug("dlipower: no login challenge, using basic auth")
		p.basicAuth = true
		p.loggedIn = true
		return nil
	}

	form := url.Values{}
	form.Set("Username", p.cfg.Username)
	form.Set("Password", ChallengeResponse(challenge, p.cfg.Username, p.cfg.Password))

	u.Path = pathLogin
	loginResp, err := p.client.PostForm(u.String(), form)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}
	defer loginResp.Body.Close()
	_, _ = io.Copy(io.Discard, loginResp.Body)

	if loginResp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login returned %d", domain.ErrConnectivity, loginResp.StatusCode)
	}
	p.basicAuth = false
	p.loggedIn = true
	p.logger.Debug("dlipower: logged in")
	return nil
}

// ChallengeResponse is md5hex(challenge + username + password + challenge).
func ChallengeResponse(challenge, username, password string) string {
	hash := md5.Sum([]byte(challenge + username + password + challenge))
	return hex.EncodeToString(hash[:])
}

func isLoginPage(body string) bool {
	return strings.Contains(body, "Challenge")
}

// ensure interface compliance
var _ port.RelayClient = (*PowerSwitch)(nil)
