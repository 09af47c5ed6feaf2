package headers

import (
	"strings"
)

// SiteDefaults is the header profile the marketplace expects on every call
var SiteDefaults = map[string]string{
	"Accept":  "application/json, text/plain, */*",
	"Origin":  "https://autospot.ru",
	"Referer": "https://autospot.ru/",
}

// ParseHeaders converts an array of header strings ("Key: Value") into a map
func ParseHeaders(h []string) map[string]string {
	m := make(map[string]string)
	for _, hdr := range h {
		parts := strings.SplitN(hdr, ":", 2)
		if len(parts) == 2 {
			m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return m
}

// Merge returns a new map with the entries of each layer applied in order
func Merge(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// Bearer builds an Authorization header set for token
func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
