package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
)

var (
	reLeadingDigits = regexp.MustCompile(`^\s*(\d{1,3})\b`)
	dateLayouts     = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006", "02.01.2006", "2006/01/02", time.RFC3339}
	stringFields    = []string{"nome", "descricao", "categoria", "nome_responsavel", "contacto", "ultima_localizacao"}
)

var allowedKeys = map[string]struct{}{
	"nome": {}, "idade": {}, "genero": {}, "descricao": {}, "data_desaparecimento": {},
	"categoria": {}, "nome_responsavel": {}, "contacto": {}, "ultima_localizacao": {},
	"responsaveis": {},
}

// NormalizeAndSanitizeJSON
// - Removes keys outside the recognized set
// - Drops null/empty values, so they read as absent
// - Coerces idade and contacto numbers to strings
// - Canonicalizes genero, categoria and data_desaparecimento
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}

	dropped := make([]string, 0, 8)
	drop := func(k, why string) {
		delete(m, k)
		dropped = append(dropped, k+"("+why+")")
	}

	// 1) unknown keys
	for k := range maps.Clone(m) {
		if _, ok := allowedKeys[k]; !ok {
			drop(k, "unknown")
		}
	}

	// 2) plain strings
	for _, k := range stringFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok {
			m[k] = s
		} else {
			drop(k, "empty")
		}
	}

	// 3) idade: number or string, kept as its decimal string
	if v, ok := m["idade"]; ok {
		switch t := v.(type) {
		case float64:
			if t >= 0 && t < 1000 {
				m["idade"] = strconv.Itoa(int(t))
			} else {
				drop("idade", "range")
			}
		case string:
			if sm := reLeadingDigits.FindStringSubmatch(t); sm != nil {
				m["idade"] = sm[1]
			} else {
				drop("idade", "format")
			}
		default:
			drop("idade", "type")
		}
	}

	// 4) genero
	if v, ok := m["genero"]; ok {
		s, _ := v.(string)
		if g, ok := constants.CanonicalGender(s); ok {
			m["genero"] = string(g)
		} else {
			drop("genero", "unknown")
		}
	}

	// 5) categoria: presets are canonicalized, anything else is kept verbatim
	if s, ok := m["categoria"].(string); ok {
		if c, ok := constants.CanonicalCategory(s); ok {
			m["categoria"] = string(c)
		}
	}

	// 6) data_desaparecimento
	if v, ok := m["data_desaparecimento"]; ok {
		s, _ := v.(string)
		if d, ok := parseDate(s); ok {
			m["data_desaparecimento"] = d
		} else {
			drop("data_desaparecimento", "format")
		}
	}

	// 7) responsaveis
	if v, ok := m["responsaveis"]; ok {
		list, _ := v.([]any)
		contacts := make([]map[string]string, 0, len(list))
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := scalarString(obj["nome"])
			phone, _ := scalarString(obj["contacto"])
			if name == "" && phone == "" {
				continue
			}
			contacts = append(contacts, map[string]string{"nome": name, "contacto": phone})
		}
		if len(contacts) == 0 {
			drop("responsaveis", "empty")
		} else {
			m["responsaveis"] = contacts
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// scalarString trims strings and formats numbers. Everything else, and blank
// strings, report false.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
