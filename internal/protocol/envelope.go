package protocol

import (
	"encoding/json"

	apperrors "github.com/delihood/client/internal/errors"
)

// envelope is the shape every generic reply is checked against first. The
// backend reports business failures inside 200 bodies.
type envelope struct {
	Error *string `json:"error"`
}

// CheckEnvelope fails with ApplicationError when body carries a non-empty
// "error" field and returns body unchanged otherwise. A body that is not a
// JSON object is a DecodeFailure.
func CheckEnvelope(op string, body []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.Wrap(apperrors.KindDecodeFailure, op, err)
	}
	if env.Error != nil && *env.Error != "" {
		return nil, apperrors.Application(op, *env.Error)
	}
	return body, nil
}
