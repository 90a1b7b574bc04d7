package language

import "strings"

type entry struct {
	code2   string // ISO 639-1 (2-letter)
	code3   string // ISO 639-2 primary (3-letter)
	alt3    string // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string
	word    string // full word form (e.g. "english")
}

// The table covers the languages the recognizer backends accept as hints.
var languages = []entry{
	{"en", "eng", "", "English", "english"},
	{"ru", "rus", "", "Russian", "russian"},
	{"es", "spa", "", "Spanish", "spanish"},
	{"fr", "fra", "fre", "French", "french"},
	{"de", "deu", "ger", "German", "german"},
	{"it", "ita", "", "Italian", "italian"},
	{"pt", "por", "", "Portuguese", "portuguese"},
	{"ja", "jpn", "", "Japanese", "japanese"},
	{"ko", "kor", "", "Korean", "korean"},
	{"zh", "zho", "chi", "Chinese", "chinese"},
	{"uk", "ukr", "", "Ukrainian", "ukrainian"},
	{"nl", "nld", "dut", "Dutch", "dutch"},
	{"pl", "pol", "", "Polish", "polish"},
	{"tr", "tur", "", "Turkish", "turkish"},
	{"ar", "ara", "", "Arabic", "arabic"},
	{"hi", "hin", "", "Hindi", "hindi"},
}

var index map[string]*entry

func init() {
	index = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		index[e.code2] = e
		index[e.code3] = e
		if e.alt3 != "" {
			index[e.alt3] = e
		}
		index[e.word] = e
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	return index[code]
}

// ToISO2 converts any recognized language code or word to ISO 639-1 (2-letter).
// A 2-letter code outside the table passes through unchanged; anything else
// unrecognized yields an empty string.
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable language name for any recognized code.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
