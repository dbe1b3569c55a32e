package sync

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/atelier-ops/atelier-sync/internal/erp"
	"github.com/atelier-ops/atelier-sync/internal/numeric"
	"github.com/atelier-ops/atelier-sync/internal/store"
)

// Mapping describes how one ERP entity lands in a local table
type Mapping struct {
	// Entity is the request value, e.g. "products"
	Entity string

	// Singular names the entity in summary entries, e.g. "product"
	Singular string

	Table         string
	LinkageColumn string

	// HashFields are the remote fields covered by the content hash
	HashFields []string

	// LabelKey is the summary entry key carrying the human label and
	// LabelField the remote field it is read from
	LabelKey   string
	LabelField string

	// Columns maps a remote record onto local columns, excluding the
	// linkage triple
	Columns func(rec erp.Record) store.Fields
}

var mappings = map[string]Mapping{
	EntityContacts: {
		Entity:        EntityContacts,
		Singular:      "contact",
		Table:         "contacts",
		LinkageColumn: "tiny_contact_id",
		HashFields:    []string{"nome", "cpf_cnpj", "email"},
		LabelKey:      "name",
		LabelField:    "nome",
		Columns: func(rec erp.Record) store.Fields {
			return store.Fields{
				"name":   optionalString(rec, "nome"),
				"tax_id": optionalString(rec, "cpf_cnpj"),
				"email":  optionalString(rec, "email"),
				"phone":  optionalString(rec, "fone"),
				"city":   optionalString(rec, "cidade"),
				"state":  optionalString(rec, "uf"),
			}
		},
	},
	EntityProducts: {
		Entity:        EntityProducts,
		Singular:      "product",
		Table:         "products",
		LinkageColumn: "tiny_product_id",
		HashFields:    []string{"nome", "codigo", "preco"},
		LabelKey:      "sku",
		LabelField:    "codigo",
		Columns: func(rec erp.Record) store.Fields {
			return store.Fields{
				"name":       optionalString(rec, "nome"),
				"sku":        optionalString(rec, "codigo"),
				"unit_price": numeric.ParseNumeric(rec["preco"]),
				"unit":       optionalString(rec, "unidade"),
			}
		},
	},
	EntityOrders: {
		Entity:        EntityOrders,
		Singular:      "order",
		Table:         "orders",
		LinkageColumn: "tiny_order_id",
		HashFields:    []string{"numero", "situacao", "valor"},
		LabelKey:      "number",
		LabelField:    "numero",
		Columns: func(rec erp.Record) store.Fields {
			return store.Fields{
				"order_number":  optionalString(rec, "numero"),
				"customer_name": optionalString(rec, "nome"),
				"total":         numeric.ParseNumeric(rec["valor"]),
				"status":        optionalString(rec, "situacao"),
				"order_date":    optionalDate(rec, "data_pedido"),
			}
		},
	},
}

// MappingFor returns the mapping for an entity
func MappingFor(entity string) (Mapping, bool) {
	m, ok := mappings[entity]
	return m, ok
}

// Label returns the human label of a remote record, or "" when it has none
func (m Mapping) Label(rec erp.Record) string {
	if s, ok := optionalString(rec, m.LabelField).(string); ok {
		return s
	}
	return ""
}

// Hash returns the content hash of a remote record
func (m Mapping) Hash(rec erp.Record) string {
	return ContentHash(hashedFields(rec, m.HashFields))
}

// Payload builds the full write payload for a remote record
func (m Mapping) Payload(rec erp.Record, hash string, now time.Time) store.Fields {
	fields := m.Columns(rec)
	fields[m.LinkageColumn] = rec.ID()
	fields[store.ColumnHash] = hash
	fields[store.ColumnSyncedAt] = now
	return fields
}

// optionalString returns the trimmed text of a field, or nil when it is
// missing or blank so it is written as NULL.
func optionalString(rec erp.Record, key string) any {
	var s string
	switch v := rec[key].(type) {
	case nil:
		return nil
	case string:
		s = v
	case json.Number:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// optionalDate parses a dd/mm/yyyy field, or returns nil
func optionalDate(rec erp.Record, key string) any {
	s, ok := optionalString(rec, key).(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(erpDateLayout, s)
	if err != nil {
		return nil
	}
	return t
}
