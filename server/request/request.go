package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// PathValue parses the path value for name and returns (data,true),
// otherwise returns (data,false) indicating that processing the request
// should be aborted immediately.
func PathValue[T ~string | ~int | ~int64](
	w http.ResponseWriter, r *http.Request, name string,
) (T, bool) {
	var zero T
	v := r.PathValue(name)
	if v == "" {
		http.Error(w, "missing path value: "+name, http.StatusBadRequest)
		return zero, false
	}
	switch any(zero).(type) {
	case string:
		return any(v).(T), true
	case int:
		x, err := strconv.Atoi(v)
		if IfErrBadRequest(w, err, "invalid path value: "+name) {
			return zero, false
		}
		return any(x).(T), true
	case int64:
		x, err := strconv.ParseInt(v, 10, 64)
		if IfErrBadRequest(w, err, "invalid path value: "+name) {
			return zero, false
		}
		return any(x).(T), true
	default:
		http.Error(w, "unsupported type", http.StatusBadRequest)
		return zero, false
	}
}

var (
	errTrailingData = errors.New("unexpected data after JSON value")
	errNullBody     = errors.New("body is null")
)

// ReadJSON decodes the request body, which must be exactly one non-null
// JSON value, into v and returns false after writing a bad request response
// if it isn't.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	var raw json.RawMessage
	err := dec.Decode(&raw)
	if err == nil {
		if _, errTok := dec.Token(); !errors.Is(errTok, io.EOF) {
			err = errTrailingData
		}
	}
	if err == nil && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		err = errNullBody
	}
	if err == nil {
		err = json.Unmarshal(raw, v)
	}
	return !IfErrBadRequest(w, err, "malformed JSON body")
}

// WriteJSON writes v as indented JSON with status 200.
func WriteJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if IfErrInternal(w, err, "") {
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if _, err := w.Write(b); err != nil {
		slog.Debug("writing response", slog.Any("err", err))
	}
}

func IfErrInternal(w http.ResponseWriter, err error, msg string) (stop bool) {
	if err == nil {
		return false
	}
	slog.Error("internal error", slog.Any("err", err))
	if msg == "" {
		msg = http.StatusText(http.StatusInternalServerError)
	}
	http.Error(w, msg, http.StatusInternalServerError)
	return true
}

func IfErrBadRequest(w http.ResponseWriter, err error, msg string) (stop bool) {
	if err == nil {
		return false
	}
	if msg == "" {
		msg = http.StatusText(http.StatusBadRequest)
	}
	slog.Debug("bad request", slog.Any("err", err), slog.String("msg", msg))
	http.Error(w, msg, http.StatusBadRequest)
	return true
}

func IfErrNotFound(w http.ResponseWriter, err error, msg string) (stop bool) {
	if err == nil {
		return false
	}
	if msg == "" {
		msg = http.StatusText(http.StatusNotFound)
	}
	slog.Debug("not found", slog.Any("err", err), slog.String("msg", msg))
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusNotFound)
	return true
}
