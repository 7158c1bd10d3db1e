package payload

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/diewo77/go-crm/internal/models"
)

const paymentTermsField = "payment_terms"

// PaymentTerms is either a JSON-encoded string holding the list, or the list
// itself.
type PaymentTerms struct {
	kind    kind
	encoded string
	list    json.RawMessage
}

// Term is a validated installment.
type Term struct {
	Date   models.Date
	Amount float64
}

// DecodePaymentTerms reads the JSON form of the field.
func DecodePaymentTerms(raw json.RawMessage) (PaymentTerms, error) {
	k, ok := jsonKind(raw)
	if !ok {
		return PaymentTerms{}, errNotList()
	}
	switch k {
	case kindList:
		return PaymentTerms{kind: kindList, list: raw}, nil
	case kindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return PaymentTerms{}, errInvalidData()
		}
		return PaymentTermsString(s), nil
	}
	return PaymentTerms{}, nil
}

// PaymentTermsString builds the encoded-string alternative, as multipart
// forms carry it.
func PaymentTermsString(encoded string) PaymentTerms {
	return PaymentTerms{kind: kindString, encoded: encoded}
}

// Terms parses and validates every entry. An absent value yields no terms.
func (p PaymentTerms) Terms() ([]Term, error) {
	raw := p.list
	if p.kind == kindString {
		s := strings.TrimSpace(p.encoded)
		if s == "" {
			return []Term{}, nil
		}
		if !json.Valid([]byte(s)) {
			return nil, errInvalidData()
		}
		raw = json.RawMessage(s)
	}
	if p.kind == kindAbsent {
		return []Term{}, nil
	}

	if k, _ := jsonKind(raw); k != kindList {
		return nil, errNotList()
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errNotList()
	}

	terms := make([]Term, 0, len(entries))
	for i, entry := range entries {
		term, err := parseTerm(i, entry)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

type rawTerm struct {
	Date   *string         `json:"date"`
	Amount json.RawMessage `json:"amount"`
}

func parseTerm(i int, entry json.RawMessage) (Term, error) {
	var rt rawTerm
	if !bytes.HasPrefix(bytes.TrimSpace(entry), []byte("{")) {
		return Term{}, errTerm(i, "entry must be an object")
	}
	if err := json.Unmarshal(entry, &rt); err != nil {
		return Term{}, errTerm(i, err.Error())
	}
	if rt.Date == nil || strings.TrimSpace(*rt.Date) == "" {
		return Term{}, errTerm(i, "date is required")
	}
	date, err := models.ParseDate(*rt.Date)
	if err != nil {
		return Term{}, errTerm(i, err.Error())
	}
	amount, err := parseAmount(rt.Amount)
	if err != nil {
		return Term{}, errTerm(i, err.Error())
	}
	return Term{Date: date, Amount: models.RoundMoney(amount)}, nil
}

// parseAmount accepts a JSON number or a numeric string, as decimal fields
// are often sent quoted.
func parseAmount(raw json.RawMessage) (float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, invalid(paymentTermsField, "amount is required")
	}
	var amount float64
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, invalid(paymentTermsField, "amount must be a number")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, invalid(paymentTermsField, "amount must be a number")
		}
		amount = v
	} else if err := json.Unmarshal(trimmed, &amount); err != nil {
		return 0, invalid(paymentTermsField, "amount must be a number")
	}
	if amount < 0 {
		return 0, invalid(paymentTermsField, "amount must not be negative")
	}
	return amount, nil
}

func errInvalidData() *Error {
	return invalid(paymentTermsField, "invalid payment_terms data")
}

func errNotList() *Error {
	return invalid(paymentTermsField, "payment_terms must be a list")
}

func errTerm(i int, reason string) *Error {
	return invalid(paymentTermsField, "invalid payment term data: entry %d: %s", i, reason)
}
