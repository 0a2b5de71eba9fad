// ABOUTME: Alignment units and phrases
// ABOUTME: Order-preserving JSON decoding of phrase slots

package verse

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nainya/versealign/pkg/textrange"
)

// Phrase is the aligned material of one slot.
type Phrase struct {
	OriginalText string            `json:"original-text-value"`
	Ranges       []textrange.Range `json:"ranges"`
}

// Slot is one named entry of an alignment unit. Exactly one of Phrase and
// Pseudo is meaningful: slots whose JSON value is a bare string (e.g.
// "Pseudo-English phrase") carry Pseudo and no ranges.
type Slot struct {
	Name   string
	Phrase *Phrase
	Pseudo string
}

// Unit maps slot names to phrases. Slot order follows the source line.
type Unit struct {
	Slots []Slot
}

// Phrase returns the phrase stored under slot name.
func (u *Unit) Phrase(name string) (*Phrase, bool) {
	for i := range u.Slots {
		if u.Slots[i].Name == name && u.Slots[i].Phrase != nil {
			return u.Slots[i].Phrase, true
		}
	}
	return nil, false
}

// Pseudo returns the pseudo-phrase string of slot name.
func (u *Unit) Pseudo(name string) (string, bool) {
	for _, s := range u.Slots {
		if s.Name == name && s.Phrase == nil {
			return s.Pseudo, true
		}
	}
	return "", false
}

// SlotNames returns the populated slot names in order.
func (u *Unit) SlotNames() []string {
	names := make([]string, len(u.Slots))
	for i, s := range u.Slots {
		names[i] = s.Name
	}
	return names
}

// UnmarshalJSON decodes the slot object keeping key order.
func (u *Unit) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("alignment unit: expected object, got %v", tok)
	}

	u.Slots = u.Slots[:0]
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("alignment unit: expected slot name, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("alignment unit slot %q: %w", name, err)
		}

		slot := Slot{Name: name}
		switch trimmed := bytes.TrimSpace(raw); {
		case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
			continue
		case trimmed[0] == '"':
			if err := json.Unmarshal(trimmed, &slot.Pseudo); err != nil {
				return fmt.Errorf("alignment unit slot %q: %w", name, err)
			}
		default:
			var p Phrase
			if err := json.Unmarshal(trimmed, &p); err != nil {
				return fmt.Errorf("alignment unit slot %q: %w", name, err)
			}
			slot.Phrase = &p
		}
		u.Slots = append(u.Slots, slot)
	}

	_, err = dec.Token()
	return err
}

// MarshalJSON writes the slots back as an object in slot order.
func (u Unit) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range u.Slots {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val []byte
		if s.Phrase != nil {
			val, err = json.Marshal(s.Phrase)
		} else {
			val, err = json.Marshal(s.Pseudo)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
