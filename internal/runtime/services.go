package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vaanilabs/vaani/internal/artifact"
	"github.com/vaanilabs/vaani/internal/asr"
	"github.com/vaanilabs/vaani/internal/bus"
	"github.com/vaanilabs/vaani/internal/gateway"
	"github.com/vaanilabs/vaani/internal/language"
	"github.com/vaanilabs/vaani/internal/protocol"
	"github.com/vaanilabs/vaani/internal/translate"
	"github.com/vaanilabs/vaani/internal/tts"
)

// healthStatus is the document every service serves at /health. The
// binding is immutable after boot, so the payload is computed once.
// Fields that do not apply to a service are omitted.
type healthStatus struct {
	Status             string   `json:"status"`
	Service            string   `json:"service"`
	BackendBound       bool     `json:"backend_bound"`
	BackendTier        string   `json:"backend_tier,omitempty"`
	BackendTiers       []string `json:"backend_tiers,omitempty"`
	TranslationMode    string   `json:"translation_mode,omitempty"`
	SupportedLanguages []string `json:"supported_languages"`
}

func (r *Runtime) asrMux(svc *asr.Service, sessions *gateway.Sessions, busClient *bus.Client) *http.ServeMux {
	return r.serviceMux(protocol.ServiceASR, asrDispatch(svc, busClient), sessions, healthStatus{
		Status:             "ok",
		Service:            string(protocol.ServiceASR),
		BackendBound:       svc.Tier() != asr.TierStub,
		BackendTier:        svc.Tier(),
		SupportedLanguages: language.Supported(),
	})
}

func (r *Runtime) translatorMux(svc *translate.Service, sessions *gateway.Sessions, busClient *bus.Client) *http.ServeMux {
	return r.serviceMux(protocol.ServiceTranslator, translatorDispatch(svc, busClient), sessions, healthStatus{
		Status:             "ok",
		Service:            string(protocol.ServiceTranslator),
		BackendBound:       svc.Tier() != translate.TierStub,
		BackendTier:        svc.Tier(),
		TranslationMode:    svc.Mode(),
		SupportedLanguages: language.Supported(),
	})
}

func (r *Runtime) ttsMux(svc *tts.Service, store *artifact.Store, sessions *gateway.Sessions, busClient *bus.Client) *http.ServeMux {
	tiers := svc.Tiers()
	mux := r.serviceMux(protocol.ServiceTTS, ttsDispatch(svc, busClient), sessions, healthStatus{
		Status:             "ok",
		Service:            string(protocol.ServiceTTS),
		BackendBound:       len(tiers) > 0 && tiers[0] != tts.TierSilence,
		BackendTiers:       tiers,
		SupportedLanguages: language.Supported(),
	})
	base := strings.TrimSuffix(r.cfg.Artifacts.PublicBase, "/")
	mux.Handle(base+"/", store.Handler())
	return mux
}

func (r *Runtime) serviceMux(svc protocol.Service, dispatch gateway.DispatchFunc, sessions *gateway.Sessions, health healthStatus) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", &gateway.Handler{
		Service:  svc,
		Config:   r.cfg.Gateway,
		Dispatch: dispatch,
		Sessions: sessions,
		Logger:   r.logger,
	})
	mux.HandleFunc("/health", serveHealth(health))
	mux.HandleFunc("/readyz", r.handleReady)
	return mux
}

func serveHealth(status healthStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}
}

// asrDispatch turns transcribe requests into transcription envelopes.
// Failures ride the same envelope with the error field set; only clean
// results are fanned out on the bus.
func asrDispatch(svc *asr.Service, busClient *bus.Client) gateway.DispatchFunc {
	return func(ctx context.Context, sessionID string, req any) any {
		msg, ok := req.(protocol.TranscribeRequest)
		if !ok {
			return unexpectedPayload(sessionID)
		}
		result := svc.Transcribe(ctx, msg.Audio(), msg.Language)
		resp := protocol.Transcription{
			Type:       protocol.TypeTranscription,
			SessionID:  sessionID,
			Text:       result.Text,
			Confidence: result.Confidence,
			Language:   result.Language,
		}
		if result.Err != nil {
			resp.Error = result.Err.Error()
			return resp
		}
		busClient.PublishTranscript(resp)
		return resp
	}
}

func translatorDispatch(svc *translate.Service, busClient *bus.Client) gateway.DispatchFunc {
	return func(ctx context.Context, sessionID string, req any) any {
		msg, ok := req.(protocol.TranslateRequest)
		if !ok {
			return unexpectedPayload(sessionID)
		}
		result := svc.Translate(ctx, msg.Text, msg.SourceLanguage, msg.TargetLanguage)
		resp := protocol.Translation{
			Type:           protocol.TypeTranslation,
			SessionID:      sessionID,
			TranslatedText: result.Text,
			Confidence:     result.Confidence,
			SourceLanguage: result.SourceLanguage,
			TargetLanguage: result.TargetLanguage,
			Mode:           result.Mode,
		}
		if result.Err != nil {
			resp.Error = result.Err.Error()
			return resp
		}
		busClient.PublishTranslation(resp)
		return resp
	}
}

// ttsDispatch is the one dispatcher that can answer with an error
// envelope: synthesis has no degraded result to fall back on once the
// silent stand-in itself fails.
func ttsDispatch(svc *tts.Service, busClient *bus.Client) gateway.DispatchFunc {
	return func(ctx context.Context, sessionID string, req any) any {
		msg, ok := req.(protocol.SynthesizeRequest)
		if !ok {
			return unexpectedPayload(sessionID)
		}
		speech, err := svc.Synthesize(ctx, sessionID, msg.Text, msg.Language, msg.Speaker)
		if err != nil {
			return protocol.ErrorResponse{
				Type:      protocol.TypeError,
				SessionID: sessionID,
				Code:      "synthesis_failed",
				Message:   err.Error(),
			}
		}
		resp := protocol.Synthesis{
			Type:       protocol.TypeSynthesis,
			SessionID:  sessionID,
			AudioURL:   speech.AudioURL,
			DurationMS: speech.DurationMS,
			Language:   speech.Language,
			Text:       speech.Text,
			Engine:     speech.Engine,
		}
		busClient.PublishSynthesis(resp)
		return resp
	}
}

func unexpectedPayload(sessionID string) protocol.ErrorResponse {
	return protocol.ErrorResponse{
		Type:      protocol.TypeError,
		SessionID: sessionID,
		Code:      "bad_request",
		Message:   "unexpected request payload",
	}
}
