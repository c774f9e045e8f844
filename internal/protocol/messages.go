// Package protocol defines the wire messages spoken over a modality
// endpoint's WebSocket, plus the subjects results are fanned out on.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Service identifies which modality endpoint a connection belongs to.
// Each service accepts its own request type plus ping.
type Service string

const (
	ServiceASR        Service = "asr"
	ServiceTranslator Service = "translator"
	ServiceTTS        Service = "tts"
)

// Request types.
const (
	TypeTranscribe = "transcribe"
	TypeTranslate  = "translate"
	TypeSynthesize = "synthesize"
	TypePing       = "ping"
)

// Response types.
const (
	TypeTranscription = "transcription"
	TypeTranslation   = "translation"
	TypeSynthesis     = "synthesis"
	TypePong          = "pong"
	TypeError         = "error"
)

// Bus subjects for completed results.
const (
	SubjectTranscript  = "asr.transcript"
	SubjectTranslation = "translate.translation"
	SubjectSynthesis   = "tts.synthesis"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

type TranscribeRequest struct {
	Type      string `json:"type"`
	AudioData string `json:"audio_data,omitempty"`
	Language  string `json:"language,omitempty"`

	audio []byte
}

// Audio returns the decoded payload. Populated during DecodeRequest.
func (r TranscribeRequest) Audio() []byte { return r.audio }

type TranslateRequest struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type SynthesizeRequest struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Speaker  string `json:"speaker,omitempty"`
}

type PingRequest struct {
	Type string `json:"type"`
}

type Transcription struct {
	Type       string  `json:"type"`
	SessionID  string  `json:"session_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type Translation struct {
	Type           string  `json:"type"`
	SessionID      string  `json:"session_id"`
	TranslatedText string  `json:"translated_text"`
	Confidence     float64 `json:"confidence"`
	SourceLanguage string  `json:"source_language"`
	TargetLanguage string  `json:"target_language"`
	Mode           string  `json:"translation_mode,omitempty"`
	Error          string  `json:"error,omitempty"`
}

type Synthesis struct {
	Type       string  `json:"type"`
	SessionID  string  `json:"session_id"`
	AudioURL   string  `json:"audio_url"`
	DurationMS float64 `json:"duration_ms"`
	Language   string  `json:"language,omitempty"`
	Text       string  `json:"text,omitempty"`
	Engine     string  `json:"engine,omitempty"`
}

type Pong struct {
	Type string `json:"type"`
}

type ErrorResponse struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

// DecodeRequest parses one inbound frame for the given service. Unknown
// types and types belonging to another service are rejected, never
// silently dropped. The returned error is always a *DecodeError.
func DecodeRequest(svc Service, data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypePing:
		return PingRequest{Type: typ}, nil
	case TypeTranscribe:
		if svc != ServiceASR {
			return nil, unsupported("message type not handled by this service", "type")
		}
		var msg TranscribeRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid transcribe frame", "")
		}
		audio, err := base64.StdEncoding.DecodeString(strings.TrimSpace(msg.AudioData))
		if err != nil {
			return nil, badRequest("transcribe.audio_data is not valid base64", "audio_data")
		}
		msg.audio = audio
		return msg, nil
	case TypeTranslate:
		if svc != ServiceTranslator {
			return nil, unsupported("message type not handled by this service", "type")
		}
		var msg TranslateRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid translate frame", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("translate.text is required", "text")
		}
		if strings.TrimSpace(msg.SourceLanguage) == "" {
			return nil, badRequest("translate.source_language is required", "source_language")
		}
		if strings.TrimSpace(msg.TargetLanguage) == "" {
			return nil, badRequest("translate.target_language is required", "target_language")
		}
		return msg, nil
	case TypeSynthesize:
		if svc != ServiceTTS {
			return nil, unsupported("message type not handled by this service", "type")
		}
		var msg SynthesizeRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid synthesize frame", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("synthesize.text is required", "text")
		}
		return msg, nil
	default:
		return nil, unsupported("unsupported message type", "type")
	}
}
