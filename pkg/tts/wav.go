package tts

import (
	"bytes"
	"encoding/binary"
	"regexp"
	"strconv"
)

// DefaultSampleRate is used when a PCM mime type carries no rate.
const DefaultSampleRate = 24000

var rateRegex = regexp.MustCompile(`rate=(\d+)`)

// SampleRateFromMIME extracts the rate from e.g. "audio/pcm;rate=24000".
func SampleRateFromMIME(mime string, fallback int) int {
	m := rateRegex.FindStringSubmatch(mime)
	if m == nil {
		return fallback
	}
	rate, err := strconv.Atoi(m[1])
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}

// PCMToWAV wraps mono 16-bit little-endian PCM in a 44-byte RIFF header.
func PCMToWAV(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
