package scrape

import (
	"net/http"
	"strings"
)

type blockType string

const (
	blockNone       blockType = ""
	blockCloudflare blockType = "cloudflare"
	blockCaptcha    blockType = "captcha"
	blockJSShell    blockType = "js_shell"
)

// detectBlock checks an HTTP response for signs of anti-bot protection so the
// chain can fall through to the reader API instead of feeding a challenge
// page to the extractor.
func detectBlock(resp *http.Response, body []byte) (bool, blockType) {
	if resp == nil {
		return false, blockNone
	}

	if resp.StatusCode == 403 || resp.StatusCode == 503 {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("server") == "cloudflare" {
			return true, blockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, blockCloudflare
	}
	if strings.Contains(lower, "recaptcha") || strings.Contains(lower, "hcaptcha") {
		return true, blockCaptcha
	}
	// JS-only shell: tiny body that demands javascript.
	if len(body) < 2000 && strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
		return true, blockJSShell
	}
	return false, blockNone
}
