package scrape

import (
	"fmt"
	"strings"
)

// BlockType describes the kind of anti-bot block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockRobotCheck BlockType = "robot_check"
	BlockCaptcha    BlockType = "captcha"
	BlockCloudflare BlockType = "cloudflare"
)

// BlockedError reports a listing page that came back as an anti-bot
// interstitial instead of results. Blocks do not clear within a retry
// window, so the page is dropped rather than retried.
type BlockedError struct {
	URL  string
	Type BlockType
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("scrape: blocked by %s page at %s", e.Type, e.URL)
}

// DetectBlock checks a fetched page body for signs of anti-bot protection.
// Status-level blocks (403, 429) surface as fetcher.StatusError before the
// body is ever inspected; this catches the ones served with a 200.
func DetectBlock(body []byte) (bool, BlockType) {
	lower := strings.ToLower(string(body))

	// Google interstitials: the "unusual traffic" notice and the inline
	// robot check both precede a captcha.
	if strings.Contains(lower, "unusual traffic from your computer network") ||
		strings.Contains(lower, "not a robot") {
		return true, BlockRobotCheck
	}

	// Captcha markers.
	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "hcaptcha") {
		return true, BlockCaptcha
	}

	// Cloudflare challenge page markers.
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	return false, BlockNone
}
