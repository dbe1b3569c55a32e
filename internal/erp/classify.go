package erp

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/atelier-ops/atelier-sync/internal/syncerr"
)

const (
	xmlFallbackMessage  = "ERP returned an XML error response"
	jsonFallbackMessage = "ERP reported an error"
)

var xmlErrorPattern = regexp.MustCompile(`(?s)<erro>\s*(.*?)\s*</erro>`)

// classify inspects a 2xx body and returns the "retorno" object only when the
// body is a JSON envelope without an error status.
func classify(body []byte) (gjson.Result, error) {
	trimmed := bytes.TrimSpace(body)

	if bytes.HasPrefix(trimmed, []byte("<")) {
		if m := xmlErrorPattern.FindSubmatch(trimmed); m != nil && len(m[1]) > 0 {
			return gjson.Result{}, syncerr.Remote("ERP error: " + string(m[1]))
		}
		return gjson.Result{}, syncerr.Remote(xmlFallbackMessage)
	}

	if !gjson.ValidBytes(trimmed) {
		return gjson.Result{}, syncerr.Remote("ERP returned a response that is neither JSON nor XML")
	}

	ret := gjson.GetBytes(trimmed, "retorno")
	if !ret.IsObject() {
		return gjson.Result{}, syncerr.Remote("ERP response is missing the retorno envelope")
	}

	status := ret.Get("status").String()
	code := ret.Get("codigo_erro").String()
	if !strings.EqualFold(status, "Erro") && code == "" {
		return ret, nil
	}

	msg := providerMessage(ret)
	if strings.Contains(strings.ToLower(msg), "token") {
		return gjson.Result{}, syncerr.Authentication(msg)
	}
	return gjson.Result{}, syncerr.Remote("ERP error: " + msg)
}

func providerMessage(ret gjson.Result) string {
	var parts []string
	for _, e := range ret.Get("erros.#.erro").Array() {
		if s := strings.TrimSpace(e.String()); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		if s := strings.TrimSpace(ret.Get("erro").String()); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		if code := ret.Get("codigo_erro").String(); code != "" {
			return jsonFallbackMessage + " (code " + code + ")"
		}
		return jsonFallbackMessage
	}
	return strings.Join(parts, "; ")
}
