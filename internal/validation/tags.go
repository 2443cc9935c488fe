package validation

import (
	"math"
	"strconv"
	"strings"
)

const (
	MaxTagNameLength  = 25
	MaxTagColorLength = 25
	MaxTagTypeLength  = 25

	MsgInvalidTags = "invalid tags, must be a list of tag objects"
)

var ErrInvalidTags = newError(MsgInvalidTags)

// TagRef references an existing tag by ID, or names one to find or create.
type TagRef struct {
	ID      *uint
	TagName *string
	Color   *string
	TagType *string
}

// ParseTags validates the decoded "tags" value of a JSON body. It must be a
// list of objects, each holding an integer-like id or a non-empty tag_name.
// present is false when v is nil, so callers can tell "no change" from "clear".
func ParseTags(v any) (refs []TagRef, present bool, err error) {
	if v == nil {
		return nil, false, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, true, ErrInvalidTags
	}

	refs = make([]TagRef, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, true, ErrInvalidTags
		}
		ref, ok := parseTag(obj)
		if !ok {
			return nil, true, ErrInvalidTags
		}
		refs = append(refs, ref)
	}
	return refs, true, nil
}

func parseTag(obj map[string]any) (TagRef, bool) {
	var ref TagRef

	rawID, hasID := obj["id"]
	rawName, hasName := obj["tag_name"]
	if !hasID && !hasName {
		return ref, false
	}

	if hasName {
		name, ok := rawName.(string)
		if !ok || len(name) == 0 || len(name) > MaxTagNameLength {
			return ref, false
		}
		ref.TagName = &name
	}

	if hasID {
		id, ok := parseID(rawID)
		if !ok {
			return ref, false
		}
		ref.ID = &id
	}

	var ok bool
	if ref.Color, ok = optionalString(obj, "color", MaxTagColorLength); !ok {
		return ref, false
	}
	if ref.TagType, ok = optionalString(obj, "tag_type", MaxTagTypeLength); !ok {
		return ref, false
	}
	return ref, true
}

func parseID(v any) (uint, bool) {
	switch id := v.(type) {
	case float64:
		if id < 0 || id != math.Trunc(id) || id > math.MaxUint32 {
			return 0, false
		}
		return uint(id), true
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
		if err != nil {
			return 0, false
		}
		return uint(n), true
	default:
		return 0, false
	}
}

// optionalString accepts a missing or null key, or a string of at most max bytes.
func optionalString(obj map[string]any, key string, max int) (*string, bool) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return nil, true
	}
	s, ok := raw.(string)
	if !ok || len(s) > max {
		return nil, false
	}
	return &s, true
}
