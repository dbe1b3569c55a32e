package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Product is a product record as the ERP returns it
type Product struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	SKU   string `json:"codigo"`
	Price string `json:"preco"`
}

// Contact is a contact record as the ERP returns it
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email,omitempty"`
}

// FakeERP serves the ERP search and info endpoints from in-memory records
type FakeERP struct {
	*httptest.Server

	mu       sync.Mutex
	token    string
	products []Product
	contacts []Contact
	failWith int
	calls    map[string]int
}

// NewFakeERP starts a fake ERP that accepts token
func NewFakeERP(token string) *FakeERP {
	f := &FakeERP{token: token, calls: make(map[string]int)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// SetProducts replaces the product list
func (f *FakeERP) SetProducts(products ...Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = products
}

// SetContacts replaces the contact list
func (f *FakeERP) SetContacts(contacts ...Contact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = contacts
}

// FailWith makes every call answer with status until reset with 0
func (f *FakeERP) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = status
}

// Calls returns how many requests hit endpoint
func (f *FakeERP) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

func (f *FakeERP) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	endpoint := strings.TrimPrefix(r.URL.Path, "/")
	f.calls[endpoint]++

	if f.failWith != 0 {
		w.WriteHeader(f.failWith)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("token") != f.token {
		writeRetorno(w, map[string]any{
			"status":      "Erro",
			"codigo_erro": "2",
			"erros":       []map[string]string{{"erro": "token invalido"}},
		})
		return
	}

	switch endpoint {
	case "info.php":
		writeRetorno(w, map[string]any{"status": "OK", "conta": map[string]string{"razao_social": "Atelier"}})
	case "produtos.pesquisa.php":
		items := make([]map[string]Product, len(f.products))
		for i, p := range f.products {
			items[i] = map[string]Product{"produto": p}
		}
		writeRetorno(w, map[string]any{"status": "OK", "pagina": 1, "numero_paginas": 1, "produtos": items})
	case "contatos.pesquisa.php":
		items := make([]map[string]Contact, len(f.contacts))
		for i, c := range f.contacts {
			items[i] = map[string]Contact{"contato": c}
		}
		writeRetorno(w, map[string]any{"status": "OK", "pagina": 1, "numero_paginas": 1, "contatos": items})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeRetorno(w http.ResponseWriter, retorno map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"retorno": retorno}); err != nil {
		http.Error(w, fmt.Sprintf("encode: %v", err), http.StatusInternalServerError)
	}
}
