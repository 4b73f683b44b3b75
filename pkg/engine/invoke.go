package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"zenoscript/pkg/metrics"
)

// InvokeFunction calls a top-level callable of the current session.
func (e *Engine) InvokeFunction(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	return e.Invoke(ctx, nil, name, args...)
}

// Invoke calls name on target with args.
//
// A nil target means the engine's current session and fails with
// ErrNotCompiled when nothing has been evaluated yet. A *Session or an
// Instance dispatches into that script instance. Any other value is resolved
// by exported Go method name and arity.
//
// Resolution looks at the name and argument count only; argument types are
// converted as needed. Unresolved names fail with ErrNoSuchMethod, failures
// inside the callable with ErrInvocation.
func (e *Engine) Invoke(ctx context.Context, target interface{}, name string, args ...interface{}) (result interface{}, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic recovered during invocation",
				"function", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = nil
			err = NewError(KindInvocation, fmt.Sprintf("panic: %v", r), "", 0, 0, nil)
		}
		metrics.Invocation(e.info.Name, err)
	}()

	inst, err := e.resolveInstance(target)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		c, ok := lookupMethod(target, name, len(args))
		if !ok {
			return nil, noSuchMethod(name, len(args))
		}
		res, err := c.Call(ctx, args)
		if err != nil {
			return nil, translate(KindInvocation, err, fmt.Sprintf("%T", target))
		}
		return res, nil
	}
	return invokeInstance(ctx, inst, name, args)
}

// resolveInstance returns the script instance target designates, or nil when
// target is a plain Go value.
func (e *Engine) resolveInstance(target interface{}) (Instance, error) {
	switch t := target.(type) {
	case nil:
		sess := e.Session()
		if sess == nil || sess.instance == nil {
			return nil, notCompiled()
		}
		return sess.instance, nil
	case *Session:
		if t == nil || t.instance == nil {
			return nil, notCompiled()
		}
		return t.instance, nil
	case Instance:
		return t, nil
	}
	return nil, nil
}

func invokeInstance(ctx context.Context, inst Instance, name string, args []interface{}) (interface{}, error) {
	source := ""
	if u := inst.Unit(); u != nil {
		source = u.Name()
	}

	if c, ok := inst.Lookup(name, len(args)); ok {
		res, err := c.Call(ctx, args)
		if err != nil {
			return nil, translate(KindInvocation, err, source)
		}
		return res, nil
	}

	res, found, err := inst.Dispatch(ctx, name, args)
	if !found {
		return nil, noSuchMethod(name, len(args))
	}
	if err != nil {
		return nil, translate(KindInvocation, err, source)
	}
	return res, nil
}
