package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Spok95/campus-community/internal/action"
	"github.com/Spok95/campus-community/internal/contract"
)

const maxBodyBytes = 1 << 20

type envelope interface {
	CodeString() string
}

func writeJSON(w http.ResponseWriter, res envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(action.HTTPStatus(res.CodeString()))
	_ = json.NewEncoder(w).Encode(res)
}

// badRequest answers a body or query that could not be parsed, in the envelope of domain C.
func badRequest[C action.Code](w http.ResponseWriter, err error) {
	writeJSON(w, action.FailMsg[action.Empty](C("INVALID_INPUT"), err.Error()))
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("malformed JSON body")
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(key + ": must be a number")
	}
	return n, nil
}

func pageInput(r *http.Request) (contract.PageInput, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return contract.PageInput{}, err
	}
	size, err := queryInt(r, "pageSize")
	if err != nil {
		return contract.PageInput{}, err
	}
	return contract.PageInput{Page: page, PageSize: size}, nil
}

// queryList accepts both ?status=a&status=b and ?status=a,b.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// queryDate accepts RFC 3339 or a plain date in loc.
func queryDate(r *http.Request, key string, loc *time.Location) (*time.Time, error) {
	t, _, err := parseQueryTime(r, key, loc)
	return t, err
}

// queryEndDate is queryDate for an inclusive upper bound: a plain date covers the
// whole day, up to the last microsecond Postgres can store.
func queryEndDate(r *http.Request, key string, loc *time.Location) (*time.Time, error) {
	t, dateOnly, err := parseQueryTime(r, key, loc)
	if err != nil || t == nil || !dateOnly {
		return t, err
	}
	end := t.AddDate(0, 0, 1).Add(-time.Microsecond)
	return &end, nil
}

func parseQueryTime(r *http.Request, key string, loc *time.Location) (*time.Time, bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, false, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, false, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return nil, false, errors.New(key + ": expected YYYY-MM-DD or RFC 3339")
	}
	return &t, true, nil
}
