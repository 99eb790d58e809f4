package strip

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// (un)marshallers for the strip types, so that config files and the web
// front-end deal with names rather than integers.

// ---- type State int

var stateNames = [...]string{
	Disconnected: "Disconnected",
	Connected:    "Connected",
	WriteError:   "WriteError",
	Closed:       "Closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

func (s State) MarshalJSON() ([]byte, error) {
	b, err := s.MarshalText()
	if err == nil {
		b = []byte(fmt.Sprintf("\"%s\"", string(b)))
	}
	return b, err
}

func (s *State) UnmarshalJSON(data []byte) error {
	n := len(data)
	if n < 2 || data[0] != '"' || data[n-1] != '"' {
		return errors.New("State.UnmarshalJSON: invalid JSON provided")
	}
	return s.UnmarshalText(data[1 : n-1])
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	str := string(b)
	for i, name := range stateNames {
		if strings.EqualFold(name, str) {
			*s = State(i)
			return nil
		}
	}
	if i, err := strconv.Atoi(str); err == nil {
		*s = State(i)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %q to State, is it misspelled?", str)
}
