package domain

import "sort"

const maxIDAllowList = 5000

// ValidateSplit checks a split string against the enumerated alias-resolved
// set (empty string means "no split", which is always valid).
func ValidateSplit(s string) error {
	if s == "" {
		return nil
	}
	if !ValidSplits[Split(s)] {
		return NewError(KindBadInput, "split", ErrUnknownSplit)
	}
	return nil
}

// ValidateTriageLabel checks a triage label string against the enumerated set.
func ValidateTriageLabel(l string) error {
	if !ValidTriageLabels[TriageLabel(l)] {
		return NewError(KindBadInput, "label", ErrUnknownTriageLabel)
	}
	return nil
}

// ValidateIDAllowList enforces the 5000-entry bound for lasso selections (C6).
func ValidateIDAllowList(ids []string) error {
	if len(ids) > maxIDAllowList {
		return NewError(KindBadInput, "ids", ErrTooManyIDs)
	}
	return nil
}

// AddTag appends tag to tags with multiset-forbidding-duplicates semantics:
// insertion order preserved, duplicates are no-ops. Returns the (possibly
// unchanged) slice and whether an insertion happened.
func AddTag(tags []string, tag string) ([]string, bool) {
	for _, t := range tags {
		if t == tag {
			return tags, false
		}
	}
	return append(tags, tag), true
}

// RemoveTag removes tag from tags if present, preserving order of the rest.
func RemoveTag(tags []string, tag string) ([]string, bool) {
	for i, t := range tags {
		if t == tag {
			out := make([]string, 0, len(tags)-1)
			out = append(out, tags[:i]...)
			out = append(out, tags[i+1:]...)
			return out, true
		}
	}
	return tags, false
}

// HasTriageTag reports whether tags contains a non-annotated triage:* tag,
// and returns it if so.
func HasTriageTag(tags []string) (string, bool) {
	for _, t := range tags {
		if len(t) > len(TriagePrefix) && t[:len(TriagePrefix)] == TriagePrefix && t != TagAnnotated {
			return t, true
		}
	}
	return "", false
}

// SetTriageTag atomically replaces any prior non-annotated triage:* tag with
// the one for label (I4's "setting one atomically replaces any prior").
func SetTriageTag(tags []string, label TriageLabel) []string {
	newTag := SampleTriageTag(label)
	out := make([]string, 0, len(tags)+1)
	found := false
	for _, t := range tags {
		if len(t) > len(TriagePrefix) && t[:len(TriagePrefix)] == TriagePrefix && t != TagAnnotated {
			if !found {
				out = append(out, newTag)
				found = true
			}
			continue
		}
		out = append(out, t)
	}
	if !found {
		out = append(out, newTag)
	}
	return out
}

// ClearTriageTag removes any non-annotated triage:* tag.
func ClearTriageTag(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if len(t) > len(TriagePrefix) && t[:len(TriagePrefix)] == TriagePrefix && t != TagAnnotated {
			continue
		}
		out = append(out, t)
	}
	return out
}

// SortedCopy returns a sorted copy of strs without mutating the input,
// used wherever the spec asks for deterministic ("modulo ordering") output.
func SortedCopy(strs []string) []string {
	out := make([]string, len(strs))
	copy(out, strs)
	sort.Strings(out)
	return out
}
