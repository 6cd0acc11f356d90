package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/engine"
)

const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps domain errors to their status and code. Anything else is
// logged under tag and reported as 500 internal.
func respondError(w http.ResponseWriter, logger *slog.Logger, tag string, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		logger.Error(tag+" unexpected error", "error", err)
		de = domain.ErrInternal
	}
	writeJSON(w, de.Status, ErrorResponse{Error: de.Code, Message: de.Message})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return domain.ErrInvalidBody
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.ErrInvalidBody
	}
	return nil
}

// Money is an amount sent either as a JSON number in currency units or as
// free text such as "R$ 15,50".
type Money struct {
	raw     string
	set     bool
	numeric bool
}

func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.raw, m.set = s, true
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	m.raw, m.set, m.numeric = n.String(), true, true
	return nil
}

func (m Money) IsSet() bool { return m.set }

func (m Money) Raw() string { return m.raw }

// Cents parses the amount.
func (m Money) Cents() (int64, error) {
	parse := engine.ParseMoneyToCents
	if m.numeric {
		parse = engine.ParseNumberToCents
	}
	cents, err := parse(m.raw)
	if err != nil {
		return 0, domain.ErrInvalidValue
	}
	return cents, nil
}

// centsOrUnits prefers an explicit cents field over a units amount. Neither
// set yields zero.
func centsOrUnits(cents *int64, units Money) (int64, error) {
	if cents != nil {
		if *cents < 0 {
			return 0, domain.ErrInvalidValue
		}
		return *cents, nil
	}
	if units.IsSet() {
		return units.Cents()
	}
	return 0, nil
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}
