package edgetts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"echopaths/pkg/model"
	"echopaths/pkg/tracker"
	"echopaths/pkg/tts"
)

// Provider implements tts.Provider for Microsoft Edge TTS.
type Provider struct {
	tracker      *tracker.Tracker
	defaultVoice string
}

// NewProvider creates a new Edge TTS provider. defaultVoice is used when a
// request names a voice this engine does not know.
func NewProvider(t *tracker.Tracker, defaultVoice string) *Provider {
	return &Provider{tracker: t, defaultVoice: defaultVoice}
}

// Synthesize generates mp3 audio using Edge TTS.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (*model.Audio, error) {
	if !strings.Contains(voice, "Neural") {
		voice = p.defaultVoice
	}
	if voice == "" {
		return nil, fmt.Errorf("voice ID is required")
	}

	text = tts.CleanForSpeech(text)

	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := p.sendConfig(conn); err != nil {
		return nil, err
	}

	requestID := strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := p.sendSSML(conn, voice, text, requestID); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.consumeResponses(ctx, conn, &buf); err != nil {
		if p.tracker != nil {
			p.tracker.TrackAPIFailure("edge-tts")
		}
		return nil, err
	}
	if buf.Len() == 0 {
		tts.Log("EDGETTS", text, 0, tts.ErrNoAudio)
		return nil, tts.ErrNoAudio
	}

	if p.tracker != nil {
		p.tracker.TrackAPISuccess("edge-tts")
	}
	return &model.Audio{Format: "mp3", Data: buf.Bytes()}, nil
}

// Endpoint holds the connection parameters of the Edge speech service.
type Endpoint struct {
	BaseURL            string
	Origin             string
	UserAgent          string
	TrustedClientToken string
	SecMSGecVersion    string
}

// EndpointFromEnv reads the EDGE_TTS_* variables.
func EndpointFromEnv() (Endpoint, error) {
	e := Endpoint{
		BaseURL:            os.Getenv("EDGE_TTS_BASE_URL"),
		Origin:             os.Getenv("EDGE_TTS_ORIGIN"),
		UserAgent:          os.Getenv("EDGE_TTS_USER_AGENT"),
		TrustedClientToken: os.Getenv("EDGE_TTS_TRUSTED_CLIENT_TOKEN"),
		SecMSGecVersion:    os.Getenv("EDGE_TTS_SEC_MS_GEC_VERSION"),
	}
	for name, v := range map[string]string{
		"EDGE_TTS_BASE_URL":             e.BaseURL,
		"EDGE_TTS_ORIGIN":               e.Origin,
		"EDGE_TTS_USER_AGENT":           e.UserAgent,
		"EDGE_TTS_TRUSTED_CLIENT_TOKEN": e.TrustedClientToken,
		"EDGE_TTS_SEC_MS_GEC_VERSION":   e.SecMSGecVersion,
	} {
		if v == "" {
			return e, fmt.Errorf("%s environment variable is required", name)
		}
	}
	return e, nil
}

// URL returns the websocket URL with a fresh Sec-MS-GEC token.
func (e Endpoint) URL(now time.Time) string {
	return fmt.Sprintf("%s?TrustedClientToken=%s&Sec-MS-GEC=%s&Sec-MS-GEC-Version=%s",
		e.BaseURL, e.TrustedClientToken, secMSGec(e.TrustedClientToken, now), e.SecMSGecVersion)
}

func (e Endpoint) header() http.Header {
	header := http.Header{}
	header.Set("Origin", e.Origin)
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")
	header.Set("User-Agent", e.UserAgent)
	header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	header.Set("Accept-Language", "en-US,en;q=0.9")
	header.Set("Cookie", "muid="+strings.ReplaceAll(uuid.New().String(), "-", ""))
	return header
}

func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := EndpointFromEnv()
	if err != nil {
		return nil, err
	}

	var dialErr error
	for i := 0; i < 3; i++ {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.URL(time.Now()), endpoint.header())
		if err == nil {
			return conn, nil
		}
		dialErr = err
		if resp != nil {
			slog.Warn("EdgeTTS: Handshake failure", "status", resp.Status, "status_code", resp.StatusCode)
			if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
				return nil, tts.NewFatalError(resp.StatusCode, fmt.Sprintf("edge-tts handshake rejected: %s", resp.Status))
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("websocket dial failed after retries: %w", dialErr)
}

// secMSGec derives the token from Windows file time ticks rounded down to
// five minutes.
func secMSGec(trustedClientToken string, now time.Time) string {
	ticks := now.Unix() + 11644473600
	ticks -= ticks % 300
	strToHash := fmt.Sprintf("%d0000000%s", ticks, trustedClientToken)
	hash := sha256.Sum256([]byte(strToHash))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}

func (p *Provider) sendConfig(conn *websocket.Conn) error {
	configMsg := "Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n{\"context\":{\"synthesis\":{\"audio\":{\"metadataoptions\":{\"sentenceBoundaryEnabled\":\"false\",\"wordBoundaryEnabled\":\"false\"},\"outputFormat\":\"audio-24khz-48kbitrate-mono-mp3\"}}}}"
	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMsg)); err != nil {
		return fmt.Errorf("failed to send speech.config: %w", err)
	}
	return nil
}

func (p *Provider) sendSSML(conn *websocket.Conn, voice, text, requestID string) error {
	ssml := buildSSML(voice, text)
	tts.Log("EDGETTS", ssml, 0, nil)

	ssmlMsg := fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nPath:ssml\r\n\r\n%s", requestID, ssml)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMsg)); err != nil {
		return fmt.Errorf("failed to send ssml: %w", err)
	}
	return nil
}

func buildSSML(voice, text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	escapedText := replacer.Replace(text)
	return fmt.Sprintf("<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'><voice name='%s'>%s</voice></speak>", voice, escapedText)
}

func (p *Provider) consumeResponses(ctx context.Context, conn *websocket.Conn, w io.Writer) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message failed: %w", err)
		}

		if msgType == websocket.TextMessage {
			if strings.Contains(string(data), "Path:turn.end") {
				return nil
			}
		} else if msgType == websocket.BinaryMessage {
			if err := p.handleBinaryMessage(data, w); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (p *Provider) handleBinaryMessage(data []byte, w io.Writer) error {
	if len(data) < 2 {
		return nil
	}
	headerLength := int(uint16(data[0])<<8 | uint16(data[1]))
	if len(data) < 2+headerLength {
		return nil
	}
	audioData := data[2+headerLength:]
	if len(audioData) > 0 {
		if _, err := w.Write(audioData); err != nil {
			return fmt.Errorf("write audio data failed: %w", err)
		}
	}
	return nil
}

var voices = []tts.Voice{
	{ID: "en-US-AvaMultilingualNeural", Name: "Ava (Multilingual)", Language: "en-US", IsNeural: true},
	{ID: "en-US-AndrewMultilingualNeural", Name: "Andrew (Multilingual)", Language: "en-US", IsNeural: true},
	{ID: "en-US-EmmaMultilingualNeural", Name: "Emma (Multilingual)", Language: "en-US", IsNeural: true},
	{ID: "en-GB-SoniaNeural", Name: "Sonia (UK)", Language: "en-GB", IsNeural: true},
	{ID: "en-GB-RyanNeural", Name: "Ryan (UK)", Language: "en-GB", IsNeural: true},
}

// Voices returns a list of high-quality neural voices.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return append([]tts.Voice(nil), voices...), nil
}
