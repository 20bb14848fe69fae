package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"echopaths/pkg/logging"
)

// Regex to capture key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// maxParamLen drops attribute values too long for the status line.
const maxParamLen = 20

// logLatestResponse carries the last server log line and story event.
type logLatestResponse struct {
	Log   string `json:"log"`
	Event string `json:"event,omitempty"`
}

// handleLatestLog returns the last captured log line and story event.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, logLatestResponse{
		Log:   formatLogLine(logging.GlobalLogCapture.GetLastLine()),
		Event: logging.GlobalEventCapture.GetLastLine(),
	})
}

// formatLogLine turns a slog text line into "HH:MM:SS msg (k=v, ...)". Time
// and level are folded, remaining attributes are sorted and long values
// dropped.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, timeStr string
	var params []string

	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
		case "level", "source":
		case "msg":
			msg = val
		default:
			if len(val) <= maxParamLen {
				params = append(params, fmt.Sprintf("%s=%s", key, val))
			}
		}
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params)

	output := msg
	if timeStr != "" {
		output = fmt.Sprintf("%s %s", timeStr, msg)
	}
	if len(params) > 0 {
		return fmt.Sprintf("%s (%s)", output, strings.Join(params, ", "))
	}
	return output
}
