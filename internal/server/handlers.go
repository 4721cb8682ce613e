package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mesh-intelligence/larder/internal/database"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.db.Schema())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	conditions, err := s.parseConditions(table, r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.db.Execute(types.Select{From: table, Conditions: conditions})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Rows)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	var row types.Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	result, err := s.db.Execute(types.Insert{Into: table, Values: row})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result.Rows[0])
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	conditions, err := s.parseConditions(table, r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	var set types.Row
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	result, err := s.db.Execute(types.Update{Table: table, Set: set, Conditions: conditions})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	conditions, err := s.parseConditions(table, r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.db.Execute(types.Delete{From: table, Conditions: conditions})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	var columns []types.Column
	if err := json.NewDecoder(r.Body).Decode(&columns); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if _, err := s.db.Execute(types.Create{Table: table, Columns: columns}); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, database.Result{})
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if _, err := s.db.Execute(types.Drop{Table: table}); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, database.Result{})
}

func (s *Server) handleAlter(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	rename, err := parseRenamings(r.URL.Query().Get("renamings"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.db.Execute(types.Alter{Table: table, Rename: rename}); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, database.Result{})
}

// parseConditions builds a condition set from query parameters, typed by the
// table's declared columns. A two-element array value denotes an inclusive
// interval; anything else is parsed as a scalar literal of the column's type.
func (s *Server) parseConditions(table string, params url.Values) (types.ConditionSet, error) {
	ts, err := s.db.Schema().Table(table)
	if err != nil {
		return nil, err
	}
	conditions := make(types.ConditionSet, len(params))
	for column, values := range params {
		if len(values) == 0 {
			continue
		}
		decl, ok := ts.Column(column)
		if !ok {
			return nil, fmt.Errorf("column %q: %w", column, types.ErrColumnNotFound)
		}
		operand, err := parseOperand(decl, values[0])
		if err != nil {
			return nil, err
		}
		conditions[column] = operand
	}
	return conditions, nil
}

// parseOperand parses one filter value: "[lo,hi]" becomes an interval over
// the declared type, everything else a scalar literal.
func parseOperand(decl types.DataType, text string) (types.Value, error) {
	if lo, hi, ok := intervalBounds(text); ok {
		switch decl {
		case types.TypeChar:
			loVal, err := types.ParseLiteral(types.TypeChar, lo)
			if err != nil {
				return types.Value{}, err
			}
			hiVal, err := types.ParseLiteral(types.TypeChar, hi)
			if err != nil {
				return types.Value{}, err
			}
			return types.CharInterval(loVal.Char(), hiVal.Char())
		case types.TypeString:
			return types.StringInterval(lo, hi)
		default:
			return types.Value{}, fmt.Errorf("interval condition on %s column: %w", decl, types.ErrTypeMismatch)
		}
	}
	return types.ParseLiteral(decl, text)
}

// intervalBounds recognizes "[lo,hi]" with optional quoting of the bounds.
func intervalBounds(text string) (lo, hi string, ok bool) {
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return "", "", false
	}
	var bounds [2]string
	if err := json.Unmarshal([]byte(text), &bounds); err == nil {
		return bounds[0], bounds[1], true
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(text, "["), "]")
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// parseRenamings parses "old:new,old2:new2".
func parseRenamings(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, fmt.Errorf("renamings parameter missing: %w", types.ErrInvalidName)
	}
	rename := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		old, new, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("renaming %q must be old:new: %w", pair, types.ErrInvalidName)
		}
		rename[strings.TrimSpace(old)] = strings.TrimSpace(new)
	}
	return rename, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}

// writeError maps the core error kinds onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrTableNotFound), errors.Is(err, types.ErrColumnNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrTableExists), errors.Is(err, types.ErrColumnExists):
		status = http.StatusConflict
	case errors.Is(err, types.ErrTypeMismatch),
		errors.Is(err, types.ErrInvalidSchema),
		errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrIncompleteRow):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrStorage):
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}
