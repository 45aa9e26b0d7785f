package resolver

import (
	"strings"

	"github.com/kilupskalvis/lexmerge/internal/models"
)

// multiTextSeparator joins definitions and glosses combined from several senses.
const multiTextSeparator = "; "

// MergeSenses combines sources into target under strategy and returns the
// resulting sense. The target's ID is always kept. Inputs are not modified.
func MergeSenses(target *models.Sense, sources []*models.Sense, strategy models.SenseMergeStrategy) (*models.Sense, error) {
	switch strategy {
	case models.MergeKeepTarget:
		return target.Clone(), nil
	case models.MergeKeepSource:
		if len(sources) == 0 {
			return target.Clone(), nil
		}
		return target.WithContentOf(sources[0]), nil
	case models.MergeCombineAll:
		merged := target.Clone()
		for _, src := range sources {
			combineInto(merged, src)
		}
		return merged, nil
	default:
		return nil, models.Errorf(models.KindConflict, "merge senses", "unknown sense merge strategy %q", strategy)
	}
}

// combineInto appends src's content after dst's own, dropping children that
// already exist by exact content.
func combineInto(dst, src *models.Sense) {
	dst.Gloss = combineMultiText(dst.Gloss, src.Gloss)
	dst.Definition = combineMultiText(dst.Definition, src.Definition)
	if dst.GrammaticalInfo == "" {
		dst.GrammaticalInfo = src.GrammaticalInfo
	}

	for _, ex := range src.Examples {
		if !containsExample(dst.Examples, ex) {
			dst.Examples = append(dst.Examples, ex)
		}
	}
	for _, rel := range src.Relations {
		if !containsRelation(dst.Relations, rel) {
			dst.Relations = append(dst.Relations, rel)
		}
	}
}

func combineMultiText(dst, src models.MultiText) models.MultiText {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = models.MultiText{}
	}
	for _, lang := range src.Languages() {
		text := src[lang]
		if text == "" {
			continue
		}
		existing := dst[lang]
		switch {
		case existing == "":
			dst[lang] = text
		case hasSegment(existing, text):
			// already present
		default:
			dst[lang] = existing + multiTextSeparator + text
		}
	}
	return dst
}

func hasSegment(joined, text string) bool {
	for _, seg := range strings.Split(joined, multiTextSeparator) {
		if seg == text {
			return true
		}
	}
	return false
}

func containsExample(list []models.Example, ex models.Example) bool {
	for _, e := range list {
		if e == ex {
			return true
		}
	}
	return false
}

func containsRelation(list []models.Relation, rel models.Relation) bool {
	for _, r := range list {
		if r == rel {
			return true
		}
	}
	return false
}
