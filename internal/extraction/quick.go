package extraction

// PatternExtractor is the quick pass: a deterministic rule table applied to
// normalized text. It performs no I/O and is safe for concurrent use.
type PatternExtractor struct {
	rules []Rule
}

// NewPatternExtractor creates a PatternExtractor over DefaultRules.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{rules: DefaultRules()}
}

// NewPatternExtractorWithRules creates a PatternExtractor over a custom rule
// table.
func NewPatternExtractorWithRules(rules []Rule) *PatternExtractor {
	return &PatternExtractor{rules: rules}
}

// Extract returns every field the rules can resolve from text.
func (p *PatternExtractor) Extract(text string) Result {
	norm := normalize(text)

	var out Result
	for _, rule := range p.rules {
		if out.has(rule.Field) {
			continue
		}
		if res, ok := rule.apply(norm); ok {
			out = out.Merge(res)
		}
	}
	return out
}

// Matched returns the name of the rule that resolved each field, for
// debugging rule tables.
func (p *PatternExtractor) Matched(text string) map[string]string {
	norm := normalize(text)

	matched := make(map[string]string, 3)
	for _, rule := range p.rules {
		if _, done := matched[rule.Field]; done {
			continue
		}
		if _, ok := rule.apply(norm); ok {
			matched[rule.Field] = rule.Name
		}
	}
	return matched
}

func (r Result) has(field string) bool {
	switch field {
	case FieldGender:
		return r.Gender != GenderUnknown
	case FieldAge:
		return r.Age != nil
	case FieldTime5K:
		return r.Time5KSeconds != nil
	}
	return false
}
