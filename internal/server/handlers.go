package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	"zenoscript/pkg/bindings"
	"zenoscript/pkg/coerce"
	"zenoscript/pkg/engine"
	"zenoscript/pkg/fastjson"
	"zenoscript/pkg/middleware"
)

type evalRequest struct {
	Source   string                 `json:"source"`
	Lang     string                 `json:"lang"`
	Bindings map[string]interface{} `json:"bindings"`
}

type scriptRequest struct {
	Source string `json:"source"`
	Lang   string `json:"lang"`
}

type callRequest struct {
	Args     []interface{}          `json:"args"`
	Bindings map[string]interface{} `json:"bindings"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.app.Store != nil {
		if err := s.app.Store.DB().PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("DOWN: Database Error"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) engines(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"default": s.app.Config.Engine,
		"engines": s.app.Manager.Infos(),
	})
}

func (s *Server) eval(w http.ResponseWriter, r *http.Request) {
	var req evalRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		s.fail(w, r, badRequest{errors.New("source is required")})
		return
	}
	e, err := s.app.Engine(req.Lang)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx, cancel := s.app.WithTimeout(r.Context())
	defer cancel()
	sc, out := requestContext(e, req.Bindings)
	res, err := e.EvalString(ctx, req.Source, sc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.result(w, res, out)
}

func (s *Server) listScripts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := cast.ToInt(q.Get("limit"))
	offset := cast.ToInt(q.Get("offset"))
	if limit < 0 || offset < 0 {
		s.fail(w, r, badRequest{errors.New("limit and offset must not be negative")})
		return
	}
	list, err := s.app.Store.List(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"scripts": list,
	})
}

func (s *Server) getScript(w http.ResponseWriter, r *http.Request) {
	sc, err := s.app.Store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"script":  sc,
	})
}

// putScript compiles before storing, so a stored script always compiles.
func (s *Server) putScript(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		s.fail(w, r, badRequest{errors.New("source is required")})
		return
	}
	e, err := s.app.Engine(req.Lang)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	compiled, err := e.Compile(r.Context(), req.Source)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sc, err := s.app.Store.Put(r.Context(), chi.URLParam(r, "name"), e.Info().Name, req.Source)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	body := map[string]interface{}{
		"success": true,
		"script":  sc,
	}
	if fl, ok := compiled.Unit().(interface{ Functions() []string }); ok {
		body["functions"] = fl.Functions()
	}
	middleware.WriteJSON(w, http.StatusOK, body)
}

func (s *Server) deleteScript(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Store.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) runScript(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx, cancel := s.app.WithTimeout(r.Context())
	defer cancel()

	compiled, err := s.compileStored(ctx, chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sc, out := requestContext(compiled.Engine(), req.Bindings)
	res, err := compiled.Eval(ctx, sc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.result(w, res, out)
}

// invokeScript evaluates the stored script in a private session and calls fn
// on it. Concurrent requests never share a session.
func (s *Server) invokeScript(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx, cancel := s.app.WithTimeout(r.Context())
	defer cancel()

	compiled, err := s.compileStored(ctx, chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	e := compiled.Engine()
	sc, out := requestContext(e, req.Bindings)
	sess, _, err := e.EvaluateSession(ctx, compiled.Unit(), sc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := e.Invoke(ctx, sess, chi.URLParam(r, "fn"), req.Args...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.result(w, res, out)
}

func (s *Server) compileStored(ctx context.Context, name string) (*engine.CompiledScript, error) {
	stored, err := s.app.Store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	e, err := s.app.Engine(stored.Lang)
	if err != nil {
		return nil, err
	}
	return e.Compile(ctx, stored.Source)
}

func (s *Server) result(w http.ResponseWriter, res interface{}, out *bytes.Buffer) {
	// Host objects and functions have no JSON form.
	if _, err := fastjson.Marshal(res); err != nil {
		res = coerce.ToString(res)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  res,
		"output":  out.String(),
	})
}

// requestContext gives each request its own engine scope and output buffer.
// Scripts read an empty stdin.
func requestContext(e *engine.Engine, vars map[string]interface{}) (*engine.Context, *bytes.Buffer) {
	out := &bytes.Buffer{}
	sc := e.NewContext()
	if vars != nil {
		// FromMap never returns nil, so this cannot fail.
		_ = sc.SetBindings(bindings.FromMap(vars), bindings.EngineScope)
	}
	sc.Reader = strings.NewReader("")
	sc.Writer = out
	sc.ErrorWriter = out
	return sc, out
}

func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := fastjson.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequest{fmt.Errorf("invalid request body: %w", err)}
}
