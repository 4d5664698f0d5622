package transcript

import (
	"strings"
	"time"
)

// ErrorLanguage replaces the language code on synthetic error results.
const ErrorLanguage = "error"

type Segment struct {
	Start float64 // seconds from the start of the recording
	End   float64
	Text  string
}

// Result is one finished transcription. It is passed by value and shared
// across sinks; Segments must be treated as read-only.
type Result struct {
	SessionID          string
	Text               string
	Language           string
	LanguageConfidence float64
	Segments           []Segment

	Model         string
	AudioDuration time.Duration
	Elapsed       time.Duration
	CreatedAt     time.Time

	// ErrorKind is empty for successful transcriptions.
	ErrorKind string
}

func (r Result) IsError() bool { return r.ErrorKind != "" }

// HasText reports whether the result carries anything worth showing.
func (r Result) HasText() bool {
	return !r.IsError() && strings.TrimSpace(r.Text) != ""
}

// Failed builds the error-flagged result that is broadcast when a session
// fails. The error text becomes the result text so every sink can show it.
func Failed(sessionID, kind string, err error) Result {
	msg := kind
	if err != nil {
		msg = err.Error()
	}
	return Result{
		SessionID: sessionID,
		Text:      msg,
		Language:  ErrorLanguage,
		ErrorKind: kind,
		CreatedAt: time.Now(),
	}
}

// Message is the push-channel wire form.
type Message struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

func (r Result) Message() Message {
	lang := r.Language
	if r.IsError() {
		lang = ErrorLanguage
	}
	return Message{Text: r.Text, Language: lang, Confidence: r.LanguageConfidence}
}
