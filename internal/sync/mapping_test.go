package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-sync/internal/erp"
	"github.com/atelier-ops/atelier-sync/internal/store"
)

func TestMappingFor(t *testing.T) {
	t.Parallel()

	for _, entity := range []string{EntityContacts, EntityProducts, EntityOrders} {
		m, ok := MappingFor(entity)
		require.True(t, ok, entity)
		assert.Equal(t, entity, m.Entity)
		assert.Len(t, m.HashFields, 3)
	}

	_, ok := MappingFor("invoices")
	assert.False(t, ok)
}

func TestMapping_ProductPayload(t *testing.T) {
	t.Parallel()

	m, _ := MappingFor(EntityProducts)
	rec := erp.Record{"id": "T1", "nome": "Bolsa X", "codigo": "SKU1", "preco": json.Number("99.90")}
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	hash := m.Hash(rec)

	payload := m.Payload(rec, hash, now)

	assert.Equal(t, "Bolsa X", payload["name"])
	assert.Equal(t, "SKU1", payload["sku"])
	price, ok := payload["unit_price"].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("99.90")))
	assert.Nil(t, payload["unit"])
	assert.Equal(t, "T1", payload["tiny_product_id"])
	assert.Equal(t, hash, payload[store.ColumnHash])
	assert.Equal(t, now, payload[store.ColumnSyncedAt])
	assert.Equal(t, "SKU1", m.Label(rec))
}

func TestMapping_ContactPayload(t *testing.T) {
	t.Parallel()

	m, _ := MappingFor(EntityContacts)
	rec := erp.Record{"id": json.Number("55"), "nome": " Ana Souza ", "cpf_cnpj": "", "email": "ana@example.com", "uf": "SP"}

	payload := m.Payload(rec, "h", time.Now())

	assert.Equal(t, "Ana Souza", payload["name"])
	assert.Nil(t, payload["tax_id"], "blank values are written as NULL")
	assert.Equal(t, "ana@example.com", payload["email"])
	assert.Nil(t, payload["phone"])
	assert.Equal(t, "SP", payload["state"])
	assert.Equal(t, "55", payload["tiny_contact_id"])
	assert.Equal(t, "Ana Souza", m.Label(rec))
}

func TestMapping_OrderPayload(t *testing.T) {
	t.Parallel()

	m, _ := MappingFor(EntityOrders)

	tests := []struct {
		name      string
		rec       erp.Record
		wantTotal string
		wantDate  any
	}{
		{
			name:      "complete order",
			rec:       erp.Record{"id": "O1", "numero": json.Number("1042"), "valor": "1.234,56", "situacao": "Aprovado", "data_pedido": "17/10/2026"},
			wantTotal: "1234.56",
			wantDate:  time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "unparseable total and date",
			rec:       erp.Record{"id": "O2", "numero": "1043", "valor": "n/a", "data_pedido": "ontem"},
			wantTotal: "0",
			wantDate:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload := m.Payload(tt.rec, "h", time.Now())
			total, ok := payload["total"].(decimal.Decimal)
			require.True(t, ok)
			assert.True(t, total.Equal(decimal.RequireFromString(tt.wantTotal)), total.String())
			assert.Equal(t, tt.wantDate, payload["order_date"])
		})
	}

	assert.Equal(t, "1042", m.Label(erp.Record{"numero": json.Number("1042")}))
}

func TestMapping_HashIgnoresUnhashedFields(t *testing.T) {
	t.Parallel()

	m, _ := MappingFor(EntityProducts)
	a := erp.Record{"id": "T1", "nome": "Bolsa", "codigo": "S", "preco": "10", "unidade": "UN"}
	b := erp.Record{"id": "T1", "nome": "Bolsa", "codigo": "S", "preco": "10", "unidade": "CX"}
	c := erp.Record{"id": "T1", "nome": "Bolsa", "codigo": "S", "preco": "11", "unidade": "UN"}

	assert.Equal(t, m.Hash(a), m.Hash(b))
	assert.NotEqual(t, m.Hash(a), m.Hash(c))
}
