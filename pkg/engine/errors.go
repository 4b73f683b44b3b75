package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a ScriptError.
type Kind int

const (
	KindCompilation Kind = iota + 1
	KindIO
	KindEvaluation
	KindInvocation
	KindNoSuchMethod
	KindNotCompiled
)

var (
	ErrCompilation  = errors.New("compilation error")
	ErrIO           = errors.New("could not read the script source")
	ErrEvaluation   = errors.New("evaluation error")
	ErrInvocation   = errors.New("invocation error")
	ErrNoSuchMethod = errors.New("no such method")
	ErrNotCompiled  = errors.New("script has not been compiled")
)

var kindNames = map[Kind]string{
	KindCompilation:  "compilation",
	KindIO:           "io",
	KindEvaluation:   "evaluation",
	KindInvocation:   "invocation",
	KindNoSuchMethod: "no_such_method",
	KindNotCompiled:  "not_compiled",
}

var kindSentinels = map[Kind]error{
	KindCompilation:  ErrCompilation,
	KindIO:           ErrIO,
	KindEvaluation:   ErrEvaluation,
	KindInvocation:   ErrInvocation,
	KindNoSuchMethod: ErrNoSuchMethod,
	KindNotCompiled:  ErrNotCompiled,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ScriptError is the only error type that crosses the adapter boundary.
// Location fields are filled when the backend reports them.
type ScriptError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Err     error  `json:"-"`
}

// NewError builds a ScriptError. Backends use it to report located failures.
func NewError(kind Kind, message, source string, line, col int, cause error) *ScriptError {
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return &ScriptError{
		Kind:    kind,
		Message: strings.TrimSpace(message),
		Source:  source,
		Line:    line,
		Col:     col,
		Err:     cause,
	}
}

func (e *ScriptError) Error() string {
	var sb strings.Builder
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		sb.WriteString(sentinel.Error())
	} else {
		sb.WriteString("script error")
	}
	if e.Source != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Source)
		if e.Line > 0 {
			fmt.Fprintf(&sb, ":%d", e.Line)
			if e.Col > 0 {
				fmt.Fprintf(&sb, ":%d", e.Col)
			}
		}
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrNotCompiled) works.
func (e *ScriptError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// translate re-labels err as kind. Location from an inner ScriptError is kept;
// anything else becomes the cause of a fresh error.
func translate(kind Kind, err error, source string) *ScriptError {
	var se *ScriptError
	if errors.As(err, &se) {
		if se.Kind == kind && (se.Source != "" || source == "") {
			return se
		}
		out := *se
		out.Kind = kind
		if out.Source == "" {
			out.Source = source
		}
		return &out
	}
	return NewError(kind, err.Error(), source, 0, 0, err)
}

func notCompiled() *ScriptError {
	return &ScriptError{Kind: KindNotCompiled}
}

func noSuchMethod(name string, arity int) *ScriptError {
	return &ScriptError{Kind: KindNoSuchMethod, Message: fmt.Sprintf("%s/%d", name, arity)}
}
