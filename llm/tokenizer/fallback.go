package tokenizer

// Fallback counts with primary and falls back to secondary when the
// primary errors. MaxTokens and Name report the primary's values.
type Fallback struct {
	primary   Tokenizer
	secondary Tokenizer
}

var _ Tokenizer = (*Fallback)(nil)

// NewFallback chains two tokenizers.
func NewFallback(primary, secondary Tokenizer) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) CountTokens(text string) (int, error) {
	n, err := f.primary.CountTokens(text)
	if err != nil {
		return f.secondary.CountTokens(text)
	}
	return n, nil
}

func (f *Fallback) CountMessages(messages []Message) (int, error) {
	n, err := f.primary.CountMessages(messages)
	if err != nil {
		return f.secondary.CountMessages(messages)
	}
	return n, nil
}

func (f *Fallback) MaxTokens() int {
	return f.primary.MaxTokens()
}

func (f *Fallback) Name() string {
	return f.primary.Name()
}
