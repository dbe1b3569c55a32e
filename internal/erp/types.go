package erp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Record is one remote record as decoded from the ERP. Numbers are kept as
// json.Number so prices keep their textual precision.
type Record map[string]any

// ID returns the remote record id as a string
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// SearchQuery selects a page of remote records
type SearchQuery struct {
	// Page is 1-based; zero means the first page
	Page int

	// Since limits results to records changed on or after a dd/mm/yyyy date
	Since string
}

// SearchResult is one page of remote records
type SearchResult struct {
	Records    []Record
	Page       int
	TotalPages int
}

type searchEndpoint struct {
	path     string
	plural   string
	singular string
}

var searchEndpoints = map[string]searchEndpoint{
	"contacts": {path: "contatos.pesquisa.php", plural: "contatos", singular: "contato"},
	"products": {path: "produtos.pesquisa.php", plural: "produtos", singular: "produto"},
	"orders":   {path: "pedidos.pesquisa.php", plural: "pedidos", singular: "pedido"},
}

// decodeRecords decodes a JSON array of {"<singular>": {...}} items. Items
// without the wrapper key are taken as-is.
func decodeRecords(list gjson.Result, singular string) ([]Record, error) {
	if !list.Exists() {
		return nil, nil
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("expected an array, got %s", list.Type)
	}

	var records []Record
	var decodeErr error
	list.ForEach(func(_, item gjson.Result) bool {
		inner := item.Get(singular)
		if !inner.Exists() {
			inner = item
		}
		if !inner.IsObject() {
			decodeErr = fmt.Errorf("expected an object, got %s", inner.Type)
			return false
		}

		dec := json.NewDecoder(bytes.NewReader([]byte(inner.Raw)))
		dec.UseNumber()
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			decodeErr = err
			return false
		}
		records = append(records, rec)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return records, nil
}
