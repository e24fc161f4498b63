package entry

// Entry is one dictionary record as authored in the per-category JSON files.
type Entry struct {
	// ID is stable across builds; chunk membership and external links depend on it
	ID string `json:"id"`

	// Korean is the headword
	Korean string `json:"korean"`

	// Romanization is the Latin transcription shown to English readers
	Romanization string `json:"romanization"`

	// Pronunciation is the standard pronunciation (optional)
	Pronunciation *Pronunciation `json:"pronunciation,omitempty"`

	// PartOfSpeech is e.g. "noun", "verb", "expression"
	PartOfSpeech string `json:"partOfSpeech"`

	// CategoryID is the foreign key into Category
	CategoryID string `json:"categoryId"`

	// Difficulty is beginner|intermediate|advanced
	Difficulty string `json:"difficulty"`

	// Frequency is common|frequent|occasional|rare (optional)
	Frequency string `json:"frequency,omitempty"`

	// Tags is a list of tags for categorization
	Tags []string `json:"tags"`

	// ColorCode is a hex color, only set for the colors category
	ColorCode string `json:"colorCode,omitempty"`

	// Translations is keyed by locale code
	Translations map[string]Translation `json:"translations"`
}

// Pronunciation holds the Hangul pronunciation and optional IPA.
type Pronunciation struct {
	Korean string `json:"korean"`
	IPA    string `json:"ipa,omitempty"`
}

// Translation is the payload of one locale.
type Translation struct {
	Word        string      `json:"word"`
	Explanation string      `json:"explanation"`
	Examples    *Examples   `json:"examples,omitempty"`
	Dialogue    *Dialogue   `json:"dialogue,omitempty"`
	Variations  *Variations `json:"variations,omitempty"`
}

// Examples are example sentences by learner level.
type Examples struct {
	Beginner     string `json:"beginner"`
	Intermediate string `json:"intermediate"`
	Advanced     string `json:"advanced"`
	Master       string `json:"master,omitempty"`
}

// Dialogue is a short two-speaker conversation using the entry.
type Dialogue struct {
	Context  string         `json:"context"`
	Dialogue []DialogueLine `json:"dialogue"`
}

// DialogueLine is one turn of a Dialogue.
type DialogueLine struct {
	Speaker      string `json:"speaker"`
	Text         string `json:"text"`
	Romanization string `json:"romanization"`
	Translation  string `json:"translation"`
}

// Variations lists alternative forms by register.
type Variations struct {
	Formal []string `json:"formal,omitempty"`
	Casual []string `json:"casual,omitempty"`
	Short  []string `json:"short,omitempty"`
}

// LightEntry is the projection used by browse chunks and light category files.
type LightEntry struct {
	ID           string            `json:"id"`
	Korean       string            `json:"korean"`
	Romanization string            `json:"romanization"`
	CategoryID   string            `json:"categoryId"`
	Word         map[string]string `json:"word"`
}

// LocaleTranslation is a Translation without its dialogue.
type LocaleTranslation struct {
	Word        string      `json:"word"`
	Explanation string      `json:"explanation"`
	Examples    *Examples   `json:"examples,omitempty"`
	Variations  *Variations `json:"variations,omitempty"`
}

// LocaleEntry is an Entry reduced to a single locale. Dialogues are published
// separately and HasDialogue tells the client to fetch one.
type LocaleEntry struct {
	ID            string            `json:"id"`
	Korean        string            `json:"korean"`
	Romanization  string            `json:"romanization"`
	Pronunciation *Pronunciation    `json:"pronunciation,omitempty"`
	PartOfSpeech  string            `json:"partOfSpeech"`
	CategoryID    string            `json:"categoryId"`
	Difficulty    string            `json:"difficulty"`
	Frequency     string            `json:"frequency,omitempty"`
	Tags          []string          `json:"tags"`
	ColorCode     string            `json:"colorCode,omitempty"`
	HasDialogue   bool              `json:"hasDialogue"`
	Translation   LocaleTranslation `json:"translation"`
}

// ToLight projects an Entry to a LightEntry carrying the word of every locale.
func (e *Entry) ToLight() LightEntry {
	words := make(map[string]string, len(e.Translations))
	for locale, tr := range e.Translations {
		words[locale] = tr.Word
	}
	return LightEntry{
		ID:           e.ID,
		Korean:       e.Korean,
		Romanization: e.Romanization,
		CategoryID:   e.CategoryID,
		Word:         words,
	}
}

// ToLocale projects an Entry to a single locale. ok is false when the entry
// has no translation for locale.
func (e *Entry) ToLocale(locale string) (LocaleEntry, bool) {
	tr, ok := e.Translations[locale]
	if !ok {
		return LocaleEntry{}, false
	}
	return LocaleEntry{
		ID:            e.ID,
		Korean:        e.Korean,
		Romanization:  e.Romanization,
		Pronunciation: e.Pronunciation,
		PartOfSpeech:  e.PartOfSpeech,
		CategoryID:    e.CategoryID,
		Difficulty:    e.Difficulty,
		Frequency:     e.Frequency,
		Tags:          e.Tags,
		ColorCode:     e.ColorCode,
		HasDialogue:   tr.Dialogue != nil,
		Translation: LocaleTranslation{
			Word:        tr.Word,
			Explanation: tr.Explanation,
			Examples:    tr.Examples,
			Variations:  tr.Variations,
		},
	}, true
}

// IDs returns the IDs of entries in order.
func IDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i := range entries {
		ids[i] = entries[i].ID
	}
	return ids
}
