package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"zenoscript/pkg/fastjson"
)

func TestScriptErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *ScriptError
		want string
	}{
		{"bare", notCompiled(), "script has not been compiled"},
		{"located", NewError(KindCompilation, " unexpected EOF ", "Script1.lua", 2, 5, nil), "compilation error: Script1.lua:2:5: unexpected EOF"},
		{"line only", NewError(KindEvaluation, "nil value", "Script2.lua", 9, -1, nil), "evaluation error: Script2.lua:9: nil value"},
		{"method", noSuchMethod("greet", 2), "no such method: greet/2"},
		{"unknown kind", &ScriptError{Message: "odd"}, "script error: odd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestScriptErrorMatching(t *testing.T) {
	cause := errors.New("root cause")
	err := translate(KindInvocation, cause, "Script3.lua")

	assert.ErrorIs(t, err, ErrInvocation)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrEvaluation)
	assert.Equal(t, "Script3.lua", err.Source)

	located := NewError(KindEvaluation, "bad", "", 4, 2, nil)
	relabeled := translate(KindInvocation, located, "Script4.lua")
	assert.Equal(t, KindInvocation, relabeled.Kind)
	assert.Equal(t, 4, relabeled.Line)
	assert.Equal(t, "Script4.lua", relabeled.Source)
	assert.Equal(t, KindEvaluation, located.Kind)
}

func TestScriptErrorJSON(t *testing.T) {
	b, err := fastjson.Marshal(NewError(KindCompilation, "oops", "Script1.lua", 1, 2, errors.New("hidden")))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"kind":"compilation","message":"oops","source":"Script1.lua","line":1,"col":2}`, string(b))
}
