package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hotscribe/encoder"
	"hotscribe/log"
	"hotscribe/transcript"
)

// HTTPEngine posts FLAC audio to an OpenAI-compatible
// /audio/transcriptions endpoint.
type HTTPEngine struct {
	client *tracedClient
	apiURL string
	apiKey string
	model  string
}

func NewHTTPEngine(apiURL, apiKey, model string) *HTTPEngine {
	return &HTTPEngine{
		client: newTracedClient(),
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
	}
}

func (h *HTTPEngine) Name() string     { return "http" }
func (h *HTTPEngine) Concurrent() bool { return true }

// Warm pre-opens the connection to the API host.
func (h *HTTPEngine) Warm() {
	u, err := url.Parse(h.apiURL)
	if err != nil {
		return
	}
	if d := h.client.warm(u.Scheme + "://" + u.Host); d > 0 {
		log.Debugf("http engine: warmed %s (tls %.0fms)", u.Host, ms(d))
	}
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		AvgLogProb   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

func (h *HTTPEngine) Transcribe(ctx context.Context, req Request) (transcript.Result, error) {
	flacData, encodeTime, err := encoder.Encode(req.PCM, uint32(req.SampleRate), uint32(max(req.Channels, 1)))
	if err != nil {
		return transcript.Result{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.flac")
	if err != nil {
		return transcript.Result{}, err
	}
	if _, err := part.Write(flacData); err != nil {
		return transcript.Result{}, err
	}
	writer.WriteField("model", h.model)
	writer.WriteField("response_format", "verbose_json")
	if req.Options.Language != "" {
		writer.WriteField("language", req.Options.Language)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.apiURL, &body)
	if err != nil {
		return transcript.Result{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return transcript.Result{}, ctx.Err()
		}
		return transcript.Result{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	log.Network(h.Name(), log.NetworkMetrics{
		AudioLengthS: float64(len(req.PCM)) / float64(2*req.SampleRate*max(req.Channels, 1)),
		UploadKB:     float64(len(flacData)) / 1024,
		EncodeTimeMs: ms(encodeTime),
		DNSTimeMs:    ms(resp.phases.dns),
		TLSTimeMs:    ms(resp.phases.tls),
		TTFBMs:       ms(resp.phases.ttfb),
		TotalTimeMs:  ms(resp.phases.total),
		ConnReused:   resp.phases.reused,
		TLSProto:     resp.phases.tlsProto,
	})
	if gap := resp.phases.total - resp.phases.sum(); gap > 50*time.Millisecond {
		log.Debugf("http engine: %.0fms outside traced phases", ms(gap))
	}

	switch {
	case resp.status == http.StatusUnauthorized, resp.status == http.StatusForbidden:
		return transcript.Result{}, fmt.Errorf("%w: API returned %d: %s", ErrEngineUnavailable, resp.status, snippet(resp.body))
	case resp.status != http.StatusOK:
		return transcript.Result{}, fmt.Errorf("%w: API returned %d: %s", ErrEngineFailure, resp.status, snippet(resp.body))
	}

	var vr verboseResponse
	if err := json.Unmarshal(resp.body, &vr); err != nil {
		return transcript.Result{}, fmt.Errorf("%w: response parse error: %v", ErrEngineFailure, err)
	}

	r := transcript.Result{
		Text:     vr.Text,
		Language: languageCode(vr.Language),
		Model:    h.model,
	}
	var logProbSum float64
	for _, s := range vr.Segments {
		logProbSum += s.AvgLogProb
		r.Segments = append(r.Segments, transcript.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	if n := len(vr.Segments); n > 0 {
		// the API reports no language probability; mean token probability
		// stands in for it
		r.LanguageConfidence = math.Exp(logProbSum / float64(n))
	}
	return r, nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

var languageCodes = map[string]string{
	"english": "en", "spanish": "es", "french": "fr", "german": "de",
	"italian": "it", "portuguese": "pt", "dutch": "nl", "russian": "ru",
	"chinese": "zh", "japanese": "ja", "korean": "ko", "arabic": "ar",
	"hindi": "hi", "turkish": "tr", "polish": "pl", "ukrainian": "uk",
	"swedish": "sv", "czech": "cs", "greek": "el", "hebrew": "he",
}

// languageCode maps the full language names some servers return to ISO
// 639-1 codes. Unknown values pass through.
func languageCode(lang string) string {
	if code, ok := languageCodes[strings.ToLower(lang)]; ok {
		return code
	}
	return lang
}
