// Package gemini implements tts.Provider with Gemini native speech output.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"echopaths/pkg/config"
	"echopaths/pkg/model"
	"echopaths/pkg/tracker"
	"echopaths/pkg/tts"
)

const providerName = "gemini-tts"

var voices = []tts.Voice{
	{ID: "Kore", Name: "Kore (firm)", Language: "multi"},
	{ID: "Puck", Name: "Puck (upbeat)", Language: "multi"},
	{ID: "Charon", Name: "Charon (informative)", Language: "multi"},
	{ID: "Fenrir", Name: "Fenrir (excitable)", Language: "multi"},
	{ID: "Aoede", Name: "Aoede (breezy)", Language: "multi"},
	{ID: "Leda", Name: "Leda (youthful)", Language: "multi"},
	{ID: "Orus", Name: "Orus (firm)", Language: "multi"},
	{ID: "Zephyr", Name: "Zephyr (bright)", Language: "multi"},
}

// Provider synthesizes speech through generateContent with an AUDIO modality.
type Provider struct {
	client     *genai.Client
	model      string
	voice      string
	sampleRate int
	tracker    *tracker.Tracker
}

// NewProvider creates a provider. baseURL is optional.
func NewProvider(cfg config.GeminiTTSConfig, apiKey, baseURL string, t *tracker.Tracker) (*Provider, error) {
	p := &Provider{
		model:      cfg.Model,
		voice:      cfg.Voice,
		sampleRate: cfg.SampleRate,
		tracker:    t,
	}
	if p.model == "" {
		p.model = "gemini-2.5-flash-preview-tts"
	}
	if p.voice == "" {
		p.voice = "Kore"
	}
	if p.sampleRate <= 0 {
		p.sampleRate = tts.DefaultSampleRate
	}
	if apiKey == "" {
		return p, nil
	}

	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	p.client = client
	return p, nil
}

// Synthesize returns WAV audio for text.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (*model.Audio, error) {
	if p.client == nil {
		return nil, tts.NewFatalError(401, "gemini tts not configured: missing API key")
	}
	voice = p.resolveVoice(voice)
	text = tts.CleanForSpeech(text)

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(text), cfg)
	if err != nil {
		err = classify(err)
		tts.Log("GEMINI", text, statusOf(err), err)
		p.track(false)
		return nil, err
	}

	pcm, mime := inlineAudio(resp)
	if len(pcm) == 0 {
		tts.Log("GEMINI", text, 200, tts.ErrNoAudio)
		p.track(false)
		return nil, tts.ErrNoAudio
	}

	tts.Log("GEMINI", text, 200, nil)
	p.track(true)
	rate := tts.SampleRateFromMIME(mime, p.sampleRate)
	return &model.Audio{Format: "wav", Data: tts.PCMToWAV(pcm, rate)}, nil
}

// Voices returns the prebuilt Gemini voices.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return append([]tts.Voice(nil), voices...), nil
}

func (p *Provider) resolveVoice(voice string) string {
	for _, v := range voices {
		if strings.EqualFold(v.ID, voice) {
			return v.ID
		}
	}
	return p.voice
}

func (p *Provider) track(ok bool) {
	if p.tracker == nil {
		return
	}
	if ok {
		p.tracker.TrackAPISuccess(providerName)
		return
	}
	p.tracker.TrackAPIFailure(providerName)
}

// inlineAudio returns the first inline data part and its mime type.
func inlineAudio(resp *genai.GenerateContentResponse) ([]byte, string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ""
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, part.InlineData.MIMEType
		}
	}
	return nil, ""
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return tts.NewFatalError(apiErr.Code, fmt.Sprintf("gemini tts error %d: %s", apiErr.Code, apiErr.Message))
	}
	return err
}

func statusOf(err error) int {
	var fe *tts.FatalError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
