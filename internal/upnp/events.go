package upnp

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	// defaultSubscriptionTimeout is the duration requested in SUBSCRIBE.
	defaultSubscriptionTimeout = 1800 * time.Second

	// defaultRetryInterval spaces resubscription attempts after a failure.
	defaultRetryInterval = 30 * time.Second

	// minRenewInterval keeps a device granting tiny timeouts from spinning
	// the renewal loop.
	minRenewInterval = time.Second

	// maxNotifyBody bounds the size of an accepted NOTIFY body.
	maxNotifyBody = 1 << 20

	// EventPathPrefix is where Routes is expected to be mounted.
	EventPathPrefix = "/upnp/event"
)

func init() {
	// GENA delivers notifications with the NOTIFY method.
	chi.RegisterMethod("NOTIFY")
}

// Poster runs a function on the reactor.
type Poster interface {
	Post(fn func()) error
}

// EventOptions configures an EventServer.
type EventOptions struct {
	// Poster receives every notification. Required.
	Poster Poster

	// Timeout is the subscription duration requested from devices.
	// Default: 1800 seconds.
	Timeout time.Duration

	// RetryInterval spaces resubscription attempts. Default: 30 seconds.
	RetryInterval time.Duration

	// Client issues SUBSCRIBE and UNSUBSCRIBE. Default: 10 second timeout.
	Client *http.Client
}

// EventServer manages GENA subscriptions and receives their NOTIFY requests.
//
// Thread Safety: all methods are safe for concurrent use.
type EventServer struct {
	poster        Poster
	timeout       time.Duration
	retryInterval time.Duration
	client        *http.Client
	port          atomic.Int32

	mu   sync.Mutex
	subs map[string]*subscription
	wg   sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}

	logger   Logger
	loggerMu sync.RWMutex
}

// subscription is one GENA subscription for one state variable.
type subscription struct {
	token    string
	variable string
	eventURL *url.URL
	callback string
	onChange func(string)

	mu      sync.Mutex
	sid     string
	granted time.Duration

	active atomic.Bool
	stop   chan struct{}
	once   sync.Once
}

// NewEventServer creates an event server. Subscriptions fail with
// ErrCallbackUnavailable until SetCallbackPort is called.
func NewEventServer(opts EventOptions) *EventServer {
	s := &EventServer{
		poster:        opts.Poster,
		timeout:       opts.Timeout,
		retryInterval: opts.RetryInterval,
		client:        opts.Client,
		subs:          make(map[string]*subscription),
		done:          make(chan struct{}),
		logger:        noopLogger{},
	}
	if s.timeout <= 0 {
		s.timeout = defaultSubscriptionTimeout
	}
	if s.retryInterval <= 0 {
		s.retryInterval = defaultRetryInterval
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 10 * time.Second}
	}
	return s
}

// SetLogger sets the logger for the event server.
func (s *EventServer) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	defer s.loggerMu.Unlock()
	if logger == nil {
		s.logger = noopLogger{}
		return
	}
	s.logger = logger
}

func (s *EventServer) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// SetCallbackPort records the TCP port the HTTP server listens on. Devices
// are told to deliver notifications to that port.
func (s *EventServer) SetCallbackPort(port int) {
	s.port.Store(int32(port)) //nolint:gosec // TCP ports fit in int32
}

// Routes returns the NOTIFY handler. Mount it at EventPathPrefix.
func (s *EventServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.MethodFunc("NOTIFY", "/{token}", s.handleNotify)
	return r
}

// Len returns the number of live subscriptions.
func (s *EventServer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close cancels every subscription and waits for the renewal goroutines to
// send their UNSUBSCRIBE.
func (s *EventServer) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		for _, sub := range s.subs {
			sub.cancel()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

// Subscribe subscribes to the service at eventURL and delivers every change
// of variable to onChange on the reactor.
//
// Parameters:
//   - ctx: bounds the initial SUBSCRIBE
//   - eventURL: the service's eventSubURL
//   - localAddr: local address the device reaches us on; nil picks the
//     address of the route to the device
//   - variable: evented state variable name
//   - onChange: called on the reactor with the variable's new value
//
// Returns:
//   - func(): cancels the subscription; safe to call more than once and
//     never blocks
//   - error: ErrCallbackUnavailable, ErrSubscribeFailed
func (s *EventServer) Subscribe(ctx context.Context, eventURL *url.URL, localAddr net.IP, variable string, onChange func(string)) (func(), error) {
	select {
	case <-s.done:
		return nil, fmt.Errorf("%w: event server closed", ErrCallbackUnavailable)
	default:
	}

	port := int(s.port.Load())
	if port == 0 {
		return nil, ErrCallbackUnavailable
	}
	if localAddr == nil {
		addr, err := routeTo(eventURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCallbackUnavailable, err)
		}
		localAddr = addr
	}

	token := uuid.NewString()
	sub := &subscription{
		token:    token,
		variable: variable,
		eventURL: eventURL,
		callback: (&url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(localAddr.String(), strconv.Itoa(port)),
			Path:   EventPathPrefix + "/" + token,
		}).String(),
		onChange: onChange,
		stop:     make(chan struct{}),
	}
	sub.active.Store(true)

	// Registered before SUBSCRIBE: the initial NOTIFY may beat the response.
	s.mu.Lock()
	s.subs[token] = sub
	s.mu.Unlock()

	sid, granted, err := s.subscribe(ctx, sub.eventURL, sub.callback)
	if err != nil {
		s.remove(token)
		return nil, err
	}
	sub.mu.Lock()
	sub.sid, sub.granted = sid, granted
	sub.mu.Unlock()

	s.getLogger().Debug("subscribed", "url", eventURL.String(), "sid", sid, "timeout", granted)

	s.wg.Add(1)
	go s.maintain(sub)

	return sub.cancel, nil
}

func (sub *subscription) cancel() {
	sub.once.Do(func() {
		sub.active.Store(false)
		close(sub.stop)
	})
}

func (s *EventServer) remove(token string) {
	s.mu.Lock()
	delete(s.subs, token)
	s.mu.Unlock()
}

// maintain renews sub until it is cancelled, then unsubscribes.
func (s *EventServer) maintain(sub *subscription) {
	defer s.wg.Done()
	defer s.remove(sub.token)

	timer := time.NewTimer(renewAfter(sub.grantedTimeout()))
	defer timer.Stop()

	for {
		select {
		case <-sub.stop:
			s.unsubscribe(sub)
			return
		case <-timer.C:
		}

		timer.Reset(s.renew(sub))
	}
}

// renew extends sub and returns how long to wait before the next attempt.
func (s *EventServer) renew(sub *subscription) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
	defer cancel()

	sub.mu.Lock()
	sid := sub.sid
	sub.mu.Unlock()

	granted, err := s.resubscribe(ctx, sub.eventURL, sid)
	if err == nil {
		sub.setGranted(sid, granted)
		return renewAfter(granted)
	}
	s.getLogger().Warn("subscription renewal failed", "url", sub.eventURL.String(), "sid", sid, "error", err)

	// The device may have dropped the subscription; start over.
	newSID, granted, err := s.subscribe(ctx, sub.eventURL, sub.callback)
	if err != nil {
		s.getLogger().Warn("resubscribe failed", "url", sub.eventURL.String(), "error", err)
		return s.retryInterval
	}
	sub.setGranted(newSID, granted)
	s.getLogger().Info("resubscribed", "url", sub.eventURL.String(), "sid", newSID)
	return renewAfter(granted)
}

func (s *EventServer) unsubscribe(sub *subscription) {
	sub.mu.Lock()
	sid := sub.sid
	sub.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "UNSUBSCRIBE", sub.eventURL.String(), nil)
	if err != nil {
		return
	}
	req.Header["SID"] = []string{sid}

	resp, err := s.client.Do(req)
	if err != nil {
		s.getLogger().Debug("unsubscribe failed", "url", sub.eventURL.String(), "sid", sid, "error", err)
		return
	}
	drain(resp)
	s.getLogger().Debug("unsubscribed", "url", sub.eventURL.String(), "sid", sid, "status", resp.StatusCode)
}

func (sub *subscription) grantedTimeout() time.Duration {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.granted
}

func (sub *subscription) setGranted(sid string, granted time.Duration) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.sid, sub.granted = sid, granted
}

func (sub *subscription) currentSID() string {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.sid
}

// subscribe sends an initial SUBSCRIBE.
func (s *EventServer) subscribe(ctx context.Context, eventURL *url.URL, callback string) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", eventURL.String(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	// GENA header names are written as-is; some devices compare them exactly.
	req.Header["CALLBACK"] = []string{"<" + callback + ">"}
	req.Header["NT"] = []string{"upnp:event"}
	req.Header["TIMEOUT"] = []string{formatTimeout(s.timeout)}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: status %d", ErrSubscribeFailed, resp.StatusCode)
	}
	sid := resp.Header.Get("SID")
	if sid == "" {
		return "", 0, fmt.Errorf("%w: response without SID", ErrSubscribeFailed)
	}
	return sid, parseTimeout(resp.Header.Get("TIMEOUT"), s.timeout), nil
}

// resubscribe renews an existing subscription.
func (s *EventServer) resubscribe(ctx context.Context, eventURL *url.URL, sid string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", eventURL.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	req.Header["SID"] = []string{sid}
	req.Header["TIMEOUT"] = []string{formatTimeout(s.timeout)}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: renew status %d", ErrSubscribeFailed, resp.StatusCode)
	}
	return parseTimeout(resp.Header.Get("TIMEOUT"), s.timeout), nil
}

// propertySet is the body of a GENA NOTIFY.
type propertySet struct {
	XMLName    xml.Name `xml:"propertyset"`
	Properties []struct {
		Variables []struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:",any"`
	} `xml:"property"`
}

func (s *EventServer) handleNotify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	s.mu.Lock()
	sub, ok := s.subs[token]
	s.mu.Unlock()
	if !ok || !sub.active.Load() {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}

	if r.Header.Get("NT") != "upnp:event" || r.Header.Get("NTS") != "upnp:propchange" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	// An empty SID means SUBSCRIBE has not returned yet.
	if sid := sub.currentSID(); sid != "" && r.Header.Get("SID") != sid {
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}

	var set propertySet
	if err := xml.NewDecoder(io.LimitReader(r.Body, maxNotifyBody)).Decode(&set); err != nil {
		s.getLogger().Warn("malformed NOTIFY body", "token", token, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	for _, p := range set.Properties {
		for _, v := range p.Variables {
			if v.XMLName.Local != sub.variable {
				continue
			}
			value := v.Value
			err := s.poster.Post(func() {
				if sub.active.Load() {
					sub.onChange(value)
				}
			})
			if err != nil {
				return
			}
		}
	}
}

func (s *EventServer) requestTimeout() time.Duration {
	if s.client.Timeout > 0 {
		return s.client.Timeout
	}
	return 10 * time.Second
}

func renewAfter(granted time.Duration) time.Duration {
	return max(granted/2, minRenewInterval)
}

func formatTimeout(d time.Duration) string {
	return "Second-" + strconv.Itoa(int(d/time.Second))
}

// parseTimeout reads a GENA TIMEOUT header ("Second-1800" or "infinite").
func parseTimeout(header string, fallback time.Duration) time.Duration {
	v, ok := strings.CutPrefix(strings.TrimSpace(header), "Second-")
	if !ok {
		return fallback
	}
	if strings.EqualFold(v, "infinite") {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// routeTo returns the local address used to reach u's host.
func routeTo(u *url.URL) (net.IP, error) {
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}
	conn, err := net.Dial("udp", host)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
