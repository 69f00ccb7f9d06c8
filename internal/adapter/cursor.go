package adapter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const cursorVersion = 1

// Cursor is the resumable position of a job: records with After < ID <= Until
// remain. Until is the highest eligible ID when the job was created, so
// records added later are left for the next job.
type Cursor struct {
	After uint
	Until uint
}

type cursorWire struct {
	V     int  `json:"v"`
	After uint `json:"a"`
	Until uint `json:"u"`
}

// Encode returns the opaque token form of the cursor.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(cursorWire{V: cursorVersion, After: c.After, Until: c.Until})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	var w cursorWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	if w.V != cursorVersion {
		return Cursor{}, fmt.Errorf("unsupported cursor version %d", w.V)
	}
	if w.After > w.Until {
		return Cursor{}, fmt.Errorf("invalid cursor: position %d beyond bound %d", w.After, w.Until)
	}
	return Cursor{After: w.After, Until: w.Until}, nil
}
