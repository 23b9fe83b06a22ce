package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"tripsync/pkg/logging"
)

// logRegex captures key=value and key="quoted value" pairs.
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// handleLatestLog returns the last captured log line.
// GET /api/log/latest
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"log": formatLogLine(logging.RecentLogs.Last()),
	})
}

// handleRecentLogs returns the retained log lines, oldest first.
// GET /api/log/recent
func handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	lines := logging.RecentLogs.Lines()
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, formatLogLine(l))
	}
	writeJSON(w, http.StatusOK, out)
}

// formatLogLine renders a slog text line compactly:
// "HH:MM:SS [component] msg (key=value, ...)". Values longer than 20
// characters are dropped and the rest sorted by key.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, timeStr, component string
	var params []string

	for _, m := range matches {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
		case "level":
		case "msg":
			msg = val
		case "component":
			component = val
		default:
			if len(val) <= 20 {
				params = append(params, key+"="+val)
			}
		}
	}

	if msg == "" {
		return raw
	}
	sort.Strings(params)

	var b strings.Builder
	if timeStr != "" {
		b.WriteString(timeStr + " ")
	}
	if component != "" {
		fmt.Fprintf(&b, "[%s] ", component)
	}
	b.WriteString(msg)
	if len(params) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(params, ", "))
	}
	return b.String()
}
