package transcriber

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"hotscribe/metrics"
)

// phases holds the wall-clock split of one upload, filled in by httptrace
// hooks as the request progresses.
type phases struct {
	dns, connWait, tcp, tls time.Duration
	headers, body           time.Duration
	ttfb, download, total   time.Duration

	reused   bool
	tlsProto string

	// marks
	getConn, dnsStart, dialStart, tlsStart time.Time
	gotConn, wroteHeaders, wrote, first    time.Time
}

// sum is the part of total the hooks could attribute to a phase.
func (p *phases) sum() time.Duration {
	return p.connWait + p.dns + p.tcp + p.tls + p.headers + p.body + p.ttfb + p.download
}

func (p *phases) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { p.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			p.gotConn = time.Now()
			p.connWait = p.gotConn.Sub(p.getConn)
			p.reused = info.Reused
		},
		DNSStart:     func(httptrace.DNSStartInfo) { p.dnsStart = time.Now() },
		DNSDone:      func(httptrace.DNSDoneInfo) { p.dns = time.Since(p.dnsStart) },
		ConnectStart: func(_, _ string) { p.dialStart = time.Now() },
		ConnectDone:  func(_, _ string, _ error) { p.tcp = time.Since(p.dialStart) },

		TLSHandshakeStart: func() { p.tlsStart = time.Now() },
		TLSHandshakeDone: func(st tls.ConnectionState, _ error) {
			p.tls = time.Since(p.tlsStart)
			p.tlsProto = st.NegotiatedProtocol
		},
		WroteHeaders: func() {
			p.wroteHeaders = time.Now()
			p.headers = p.wroteHeaders.Sub(p.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.wrote = time.Now()
			p.body = p.wrote.Sub(p.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			p.first = time.Now()
			p.ttfb = p.first.Sub(p.wrote)
		},
	}
}

// observe exports the phases to the upload histogram.
func (p *phases) observe() {
	for name, d := range map[string]time.Duration{
		"dns":      p.dns,
		"connect":  p.tcp,
		"tls":      p.tls,
		"ttfb":     p.ttfb,
		"download": p.download,
		"total":    p.total,
	} {
		if d > 0 {
			metrics.UploadPhaseSeconds.WithLabelValues(name).Observe(d.Seconds())
		}
	}
}

// upload is a fully read response plus its timings.
type upload struct {
	status int
	body   []byte
	phases *phases
}

// tracedClient keeps a small pool of connections to the API host and
// times every phase of each request.
type tracedClient struct {
	http *http.Client
}

func newTracedClient() *tracedClient {
	return &tracedClient{http: &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        2,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}}
}

func (c *tracedClient) do(req *http.Request) (*upload, error) {
	p := &phases{}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), p.trace()))
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !p.first.IsZero() {
		p.download = time.Since(p.first)
	}
	p.total = time.Since(start)
	p.observe()

	return &upload{status: resp.StatusCode, body: body, phases: p}, nil
}

// warm opens a connection to base so the first session skips the
// handshake. It reports the TLS time, zero when nothing was negotiated.
func (c *tracedClient) warm(base string) time.Duration {
	p := &phases{}
	req, err := http.NewRequest(http.MethodHead, base, nil)
	if err != nil {
		return 0
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), p.trace()))
	resp, err := c.http.Do(req)
	if err != nil {
		return 0
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return p.tls
}
