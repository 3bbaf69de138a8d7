package provider

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	inlineTimestampRegex = regexp.MustCompile(`<\d{2}:\d{2}:\d{2}\.\d{3}>`)
	tagRegex             = regexp.MustCompile(`<[^>]+>`)
	soundRegex           = regexp.MustCompile(`^\[[^\]]*\]$`)
)

// ParseVTT parses WebVTT captions into cues. Auto-generated captions repeat
// the previous line at the top of each cue, so lines already emitted by the
// preceding cue are dropped. A cue ends at an empty line; whitespace-only
// lines inside a cue are skipped.
func ParseVTT(content string) ([]Cue, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(content)), "WEBVTT") {
		return nil, fmt.Errorf("content is not WebVTT")
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var cues []Cue
	prev := map[string]bool{}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, "-->") {
			continue
		}

		start, end, err := parseCueTiming(line)
		if err != nil {
			continue
		}

		var texts []string
		current := map[string]bool{}
		for i++; i < len(lines) && lines[i] != ""; i++ {
			text := cleanCueLine(lines[i])
			if text == "" || current[text] {
				continue
			}
			current[text] = true
			if !prev[text] {
				texts = append(texts, text)
			}
		}
		prev = current

		if len(texts) == 0 {
			continue
		}
		cues = append(cues, Cue{Start: start, End: end, Text: strings.Join(texts, " ")})
	}

	return cues, nil
}

// PlainText joins cue texts into a single normalized block
func PlainText(cues []Cue) string {
	parts := make([]string, 0, len(cues))
	for _, c := range cues {
		parts = append(parts, c.Text)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func cleanCueLine(line string) string {
	line = inlineTimestampRegex.ReplaceAllString(line, "")
	line = tagRegex.ReplaceAllString(line, "")
	line = strings.Join(strings.Fields(line), " ")
	if soundRegex.MatchString(line) {
		return ""
	}
	return line
}

// parseCueTiming parses "00:00:01.000 --> 00:00:04.000 align:start position:0%"
func parseCueTiming(line string) (float64, float64, error) {
	parts := strings.SplitN(line, "-->", 2)
	startField := strings.TrimSpace(parts[0])
	endFields := strings.Fields(parts[1])
	if startField == "" || len(endFields) == 0 {
		return 0, 0, fmt.Errorf("invalid cue timing: %s", line)
	}

	start, err := parseVTTTimestamp(startField)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseVTTTimestamp(endFields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseVTTTimestamp parses HH:MM:SS.mmm or MM:SS.mmm
func parseVTTTimestamp(ts string) (float64, error) {
	parts := strings.Split(strings.ReplaceAll(ts, ",", "."), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", ts)
	}

	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp format: %s", ts)
		}
		total = total*60 + v
	}
	return total, nil
}
