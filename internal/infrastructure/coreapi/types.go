package coreapi

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ClientRecord is one entry of the upstream client registry (GET /clients).
type ClientRecord struct {
	ID             string `json:"id"`
	Name           string `json:"nombre"`
	DocumentType   string `json:"tipo_documento"`
	DocumentNumber string `json:"numero_documento"`
	Phone          string `json:"telefono"`
	Email          string `json:"correo"`
}

// ClienteRef is the client reference embedded in a project. The upstream API
// serializes it either as a plain display string or as an object with id and
// document fields, depending on whether the client is registered.
type ClienteRef struct {
	ID             string
	Name           string
	DocumentNumber string
	Raw            string
}

func (r *ClienteRef) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		r.Raw = s
		r.Name = s
		return nil
	}
	var obj struct {
		ID       FlexString `json:"id"`
		Name     string     `json:"nombre"`
		Document string     `json:"numero_documento"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID = string(obj.ID)
	r.Name = obj.Name
	r.DocumentNumber = obj.Document
	r.Raw = obj.Name
	return nil
}

// ProjectRecord is one entry of GET /projects ({data: [...]}).
type ProjectRecord struct {
	ID             FlexString       `json:"id"`
	Cliente        ClienteRef       `json:"cliente"`
	ContractNumber string           `json:"numeroContrato"`
	StartDate      string           `json:"fechaInicio"`
	EndDate        string           `json:"fechaFin"`
	Materials      []LineItemRecord `json:"materiales"`
	Services       []LineItemRecord `json:"servicios"`
	Costs          CostsRecord      `json:"costos"`
}

// LineItemRecord is a material or service line (qty × unit price).
type LineItemRecord struct {
	Quantity  json.Number `json:"cantidad"`
	UnitPrice json.Number `json:"precio"`
}

// CostsRecord carries the non-itemized cost block of a project.
type CostsRecord struct {
	Labor json.Number `json:"manoDeObra"`
}

// PaymentRecord is one payment event as stored upstream. Older records use
// "id" instead of "id_pago_abono"; EffectiveID resolves whichever is set.
type PaymentRecord struct {
	PaymentID    FlexString `json:"id_pago_abono"`
	LegacyID     FlexString `json:"id"`
	Date         string     `json:"fecha"`
	Amount       float64    `json:"monto"`
	Method       string     `json:"metodo_pago"`
	Active       bool       `json:"estado"`
	CancelReason string     `json:"motivo_anulacion"`
}

// EffectiveID returns id_pago_abono when present, falling back to id.
func (p PaymentRecord) EffectiveID() string {
	if p.PaymentID != "" {
		return string(p.PaymentID)
	}
	return string(p.LegacyID)
}

// CreatePaymentInput is the body of POST /projects/{id}/payments.
type CreatePaymentInput struct {
	Date   string  `json:"fecha"`
	Amount float64 `json:"monto"`
	Method string  `json:"metodo_pago"`
	Active bool    `json:"estado"`
}

// FlexString accepts both JSON strings and numbers for upstream ids.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

// Float converts a json.Number from a partially-populated upstream record to
// float64, treating empty or malformed values as zero.
func Float(n json.Number) float64 {
	if n == "" {
		return 0
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0
	}
	return v
}
