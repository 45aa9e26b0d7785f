package models

// Example is a usage example attached to a sense.
type Example struct {
	Text        string `json:"text" yaml:"text"`
	Translation string `json:"translation,omitempty" yaml:"translation,omitempty"`
}

// Relation links a sense to another lexical item.
type Relation struct {
	Type   string `json:"type" yaml:"type"`
	Target string `json:"target" yaml:"target"`
}

// Sense is a distinct meaning within an entry. Its ID is unique within the
// owning entry at any instant.
type Sense struct {
	ID              string     `json:"id" yaml:"id" validate:"required"`
	Gloss           MultiText  `json:"gloss,omitempty" yaml:"gloss,omitempty"`
	Definition      MultiText  `json:"definition,omitempty" yaml:"definition,omitempty"`
	GrammaticalInfo string     `json:"grammatical_info,omitempty" yaml:"grammatical_info,omitempty"`
	Examples        []Example  `json:"examples,omitempty" yaml:"examples,omitempty"`
	Relations       []Relation `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Clone returns a deep copy of the sense.
func (s *Sense) Clone() *Sense {
	if s == nil {
		return nil
	}
	out := *s
	out.Gloss = s.Gloss.Clone()
	out.Definition = s.Definition.Clone()
	if s.Examples != nil {
		out.Examples = append([]Example(nil), s.Examples...)
	}
	if s.Relations != nil {
		out.Relations = append([]Relation(nil), s.Relations...)
	}
	return &out
}

// WithContentOf returns a copy of s carrying other's content under s's ID.
func (s *Sense) WithContentOf(other *Sense) *Sense {
	out := other.Clone()
	out.ID = s.ID
	return out
}
