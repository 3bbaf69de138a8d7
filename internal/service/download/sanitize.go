package download

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameLength = 100

// SanitizeName turns a channel name into a single safe path element.
// Separators, reserved characters and control characters become "_",
// leading and trailing dots and spaces are dropped, and the result is
// capped at 100 characters. fallback is used when nothing usable remains.
func SanitizeName(name, fallback string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		if r == utf8.RuneError || unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), " .")
	if runes := []rune(out); len(runes) > maxNameLength {
		out = strings.TrimRight(string(runes[:maxNameLength]), " .")
	}
	if out == "" || strings.Trim(out, "_") == "" {
		if fallback != "" && fallback != name {
			return SanitizeName(fallback, "unknown")
		}
		return "unknown"
	}
	return out
}

// channelDirPattern matches "{name} [{channel ID}]"
var channelDirPattern = regexp.MustCompile(`^(.+) \[([\w-]+)\]$`)

// ChannelDirName names the download directory of a channel
func ChannelDirName(name, channelID string) string {
	return SanitizeName(name, channelID) + " [" + SanitizeName(channelID, "unknown") + "]"
}

// ParseChannelDir splits a directory name made by ChannelDirName
func ParseChannelDir(dir string) (name, channelID string, ok bool) {
	m := channelDirPattern.FindStringSubmatch(dir)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
