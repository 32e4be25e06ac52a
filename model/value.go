package model

import (
	"encoding/base64"
	"encoding/json"

	"github.com/twinforge/aaskit/errors"
)

// ValueString renders the runtime value of an element as the string carried
// in scalar value documents. Blob content is base64-encoded and language
// strings render as a JSON object keyed by language tag.
func ValueString(el Referable) (string, error) {
	switch e := el.(type) {
	case *Property:
		return e.Value, nil
	case *File:
		return e.Value, nil
	case *Blob:
		return base64.StdEncoding.EncodeToString(e.Value), nil
	case *MultiLanguageProperty:
		raw, err := json.Marshal(e.Value)
		if err != nil {
			return "", errors.Wrap(err, "encoding language strings")
		}
		return string(raw), nil
	default:
		return "", errors.Wrapf(errors.ErrUnsupported, "%T carries no scalar value", el)
	}
}

// SetValueString applies a scalar value string to an element, the inverse of
// ValueString.
func SetValueString(el Referable, value string) error {
	switch e := el.(type) {
	case *Property:
		e.Value = value
		return nil
	case *File:
		e.Value = value
		return nil
	case *Blob:
		raw, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return errors.Wrap(err, "decoding blob content")
		}
		e.Value = raw
		return nil
	case *MultiLanguageProperty:
		var langs LangStringSet
		if err := json.Unmarshal([]byte(value), &langs); err != nil {
			return errors.Wrap(err, "decoding language strings")
		}
		e.Value = langs
		return nil
	default:
		return errors.Wrapf(errors.ErrUnsupported, "%T carries no scalar value", el)
	}
}
