// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"github.com/ManuGH/livecap/internal/log"
)

// defaultASRLanguages covers the multilingual whisper family when the
// manifest does not pin a language set.
var defaultASRLanguages = []string{"en", "de", "fr", "es", "it", "pt", "nl", "pl", "ru", "uk", "zh", "ja", "ko"}

// defaultMTLanguages is the fallback target set for translation models
// without a manifest.
var defaultMTLanguages = []string{"de", "en", "es", "fr", "zh"}

// manifest is the optional sidecar JSON next to a model artifact.
type manifest struct {
	Name         string            `json:"name,omitempty"`
	SupportsAuto *bool             `json:"supports_auto,omitempty"`
	Languages    []string          `json:"languages,omitempty"`
	Tokens       map[string]string `json:"tokens,omitempty"`
}

func loadManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the scanned models dir
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// capabilities derives the probe result. English-only model ids (the
// ".en" suffix convention) cannot auto-detect; everything else defaults
// to auto unless the manifest says otherwise.
func (m manifest) capabilities(modelID string) Capabilities {
	englishOnly := strings.HasSuffix(modelID, ".en")

	supportsAuto := !englishOnly
	if m.SupportsAuto != nil {
		supportsAuto = *m.SupportsAuto
	}

	langs := m.validLanguages()
	if len(langs) == 0 {
		if englishOnly {
			langs = []string{"en"}
		} else {
			langs = append([]string(nil), defaultASRLanguages...)
		}
	}

	tokens := make(map[string]string, len(langs))
	for _, lang := range langs {
		if tok, ok := m.Tokens[lang]; ok {
			tokens[lang] = tok
		} else {
			tokens[lang] = "<|" + lang + "|>"
		}
	}

	return Capabilities{
		Kind:         kindASR,
		Model:        modelID,
		SupportsAuto: supportsAuto,
		Languages:    langs,
		Tokens:       tokens,
	}
}

// validLanguages filters the manifest list down to parseable BCP-47
// tags, canonicalized and sorted. Junk entries are logged and dropped.
func (m manifest) validLanguages() []string {
	if len(m.Languages) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(m.Languages))
	out := make([]string, 0, len(m.Languages))
	for _, raw := range m.Languages {
		tag, err := language.Parse(raw)
		if err != nil {
			logger := log.WithComponent("models")
			logger.Debug().
				Str("language", raw).
				Msg("unparseable language tag in manifest, dropped")
			continue
		}
		canonical := tag.String()
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}

// decodeCaps recovers a Capabilities value from a cache hit. The memory
// backend returns the struct; the Redis backend returns the JSON shape.
func decodeCaps(v any) (Capabilities, bool) {
	if caps, ok := v.(Capabilities); ok {
		return caps, true
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return Capabilities{}, false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Capabilities{}, false
	}
	var caps Capabilities
	if err := json.Unmarshal(data, &caps); err != nil {
		return Capabilities{}, false
	}
	return caps, caps.Model != ""
}
