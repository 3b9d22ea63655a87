package resp

import (
	"fmt"
	"strings"
)

// ParamKind is the value type of a positional field or flag.
type ParamKind uint8

const (
	// ParamI64 accepts an integer in native or string form.
	ParamI64 ParamKind = iota
	// ParamBytes accepts a non-null string.
	ParamBytes
	// ParamBool is presence-only and valid for flags: the flag name alone
	// assigns true.
	ParamBool
)

// Positional describes one positional field. Optional fields may only
// follow required ones, and their kind cannot be ParamBool.
type Positional struct {
	Name     string
	Kind     ParamKind
	Optional bool
}

// Flag describes one named flag. Every flag is optional; names match
// case-insensitively.
type Flag struct {
	Name string
	Kind ParamKind
}

// Params carries the fields populated by ReadParameters and the number of
// arguments consumed from the stream. Arguments beyond Consumed remain
// unread and are the caller's responsibility to discard.
type Params struct {
	Consumed int
	values   map[string]paramValue
}

type paramValue struct {
	num int64
	buf []byte
	on  bool
}

func (p *Params) set(name string, v paramValue) {
	p.values[strings.ToLower(name)] = v
}

// I64 returns the named integer field and whether it was populated.
func (p *Params) I64(name string) (int64, bool) {
	v, ok := p.values[strings.ToLower(name)]
	return v.num, ok
}

// Bytes returns the named string field and whether it was populated.
func (p *Params) Bytes(name string) ([]byte, bool) {
	v, ok := p.values[strings.ToLower(name)]
	return v.buf, ok
}

// Bool reports whether the named bool flag was present.
func (p *Params) Bool(name string) bool {
	v, ok := p.values[strings.ToLower(name)]
	return ok && v.on
}

// ReadParameters reads up to max arguments from the current array payload
// as a run of positional fields followed by flag-name/flag-value pairs.
//
// Positional fields are consumed in order. An optional string positional
// whose value matches a flag name ends the positional phase and is treated
// as that flag's name; an integer positional holding a non-numeric string
// does the same when the string names a flag. In the flag phase, bool
// flags assign true from their name alone and the other kinds read one
// value. Reading stops once max arguments have been consumed.
func (r *Reader) ReadParameters(max int, positionals []Positional, flags []Flag) (*Params, error) {
	if err := validateParamSpec(positionals); err != nil {
		return nil, err
	}

	flagByName := make(map[string]Flag, len(flags))
	for _, f := range flags {
		flagByName[strings.ToLower(f.Name)] = f
	}

	p := &Params{values: make(map[string]paramValue)}
	var pending *Flag // flag whose name arrived in positional position

positional:
	for _, pos := range positionals {
		if p.Consumed >= max {
			break
		}
		switch pos.Kind {
		case ParamBytes:
			b, err := r.ReadString()
			if err != nil {
				return p, err
			}
			p.Consumed++
			if b == nil {
				return p, fmt.Errorf("%w: null value for %q", ErrInvalidValue, pos.Name)
			}
			if pos.Optional {
				if f, ok := flagByName[strings.ToLower(string(b))]; ok {
					pending = &f
					break positional
				}
			}
			p.set(pos.Name, paramValue{buf: b})

		case ParamI64:
			n, raw, err := r.readI64OrRaw()
			if err != nil {
				return p, err
			}
			p.Consumed++
			if raw != nil {
				f, ok := flagByName[strings.ToLower(string(raw))]
				if !ok {
					return p, fmt.Errorf("%w: %q is not an integer for %q", ErrInvalidValue, raw, pos.Name)
				}
				pending = &f
				break positional
			}
			p.set(pos.Name, paramValue{num: n})

		default:
			return p, fmt.Errorf("%w: positional %q cannot be bool", ErrInvalidParams, pos.Name)
		}
	}

	for pending != nil || p.Consumed < max {
		var f Flag
		if pending != nil {
			f = *pending
			pending = nil
		} else {
			name, err := r.ReadString()
			if err != nil {
				return p, err
			}
			p.Consumed++
			if name == nil {
				return p, fmt.Errorf("%w: null flag name", ErrInvalidValue)
			}
			var ok bool
			f, ok = flagByName[strings.ToLower(string(name))]
			if !ok {
				return p, fmt.Errorf("%w: unknown flag %q", ErrInvalidParams, name)
			}
		}

		switch f.Kind {
		case ParamBool:
			p.set(f.Name, paramValue{on: true})
		case ParamI64:
			if p.Consumed >= max {
				return p, fmt.Errorf("%w: flag %q is missing its value", ErrInvalidParams, f.Name)
			}
			n, err := r.ReadI64String()
			if err != nil {
				return p, err
			}
			p.Consumed++
			p.set(f.Name, paramValue{num: n})
		case ParamBytes:
			if p.Consumed >= max {
				return p, fmt.Errorf("%w: flag %q is missing its value", ErrInvalidParams, f.Name)
			}
			b, err := r.ReadString()
			if err != nil {
				return p, err
			}
			p.Consumed++
			if b == nil {
				return p, fmt.Errorf("%w: null value for flag %q", ErrInvalidValue, f.Name)
			}
			p.set(f.Name, paramValue{buf: b})
		}
	}

	return p, nil
}

// readI64OrRaw reads one value that should be an integer. When the value
// arrives as a string that does not parse, the raw bytes are returned
// instead so the caller can test them against the flag names.
func (r *Reader) readI64OrRaw() (int64, []byte, error) {
	k, err := r.ReadTypePrefix()
	if err != nil {
		return 0, nil, err
	}
	switch k {
	case KindInteger:
		n, err := r.readLength()
		return n, nil, err
	case KindSimpleString, KindBulkString:
		var body []byte
		if k == KindSimpleString {
			body, err = r.readSimpleLine()
		} else {
			body, err = r.readBulkBody()
		}
		if err != nil {
			return 0, nil, err
		}
		if body == nil {
			return 0, nil, fmt.Errorf("%w: null where integer required", ErrInvalidValue)
		}
		n, perr := parseI64(body)
		if perr != nil {
			return 0, body, nil
		}
		return n, nil, nil
	default:
		return 0, nil, fmt.Errorf("%w: expected integer, got %q", ErrProtocol, byte(k))
	}
}

func validateParamSpec(positionals []Positional) error {
	optionalSeen := false
	for _, pos := range positionals {
		if pos.Kind == ParamBool {
			return fmt.Errorf("%w: positional %q cannot be bool", ErrInvalidParams, pos.Name)
		}
		if pos.Optional {
			optionalSeen = true
		} else if optionalSeen {
			return fmt.Errorf("%w: required positional %q after optional fields", ErrInvalidParams, pos.Name)
		}
	}
	return nil
}
