package identity

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Oracle is the external credential attestation service, reduced to an
// oracle returning valid/invalid. Isolating it behind this interface
// means a malformed or slow upstream degrades to "reject" instead of
// taking down the login flow.
type Oracle interface {
	Verify(ctx context.Context, uid, paste string) (bool, error)
}

// UniversalOracle bypasses the real oracle when paste matches a
// configured testing proof. A blank UID accepts that proof for any uid;
// a non-blank UID restricts the bypass to that one account, which is
// what the test suite exercises.
type UniversalOracle struct {
	UID   string
	Proof string
	Next  Oracle // falls through to this when the pair doesn't match
}

func (o UniversalOracle) Verify(ctx context.Context, uid, paste string) (bool, error) {
	if o.Proof != "" && paste == o.Proof && (o.UID == "" || uid == o.UID) {
		return true, nil
	}
	if o.Next == nil {
		return false, nil
	}
	return o.Next.Verify(ctx, uid, paste)
}

// pasteDataRe captures the first "uid" value (quoted or bare digits)
// embedded in the attestation page's HTML, e.g. the 123 in
// `"data":{"user":{"uid":123},...}`. The
// upstream page is not a documented API; this is a best-effort scrape
// that tolerates drift by never panicking and always falling back to
// reject on a miss.
var pasteDataRe = regexp.MustCompile(`"uid"\s*:\s*"?(\d+)"?`)

// HTTPOracle fetches an HTML page containing an embedded JSON blob and
// checks whether it names uid. It never trusts the paste content beyond
// that extraction.
type HTTPOracle struct {
	URLTemplate string // contains "{paste}"
	Client      *http.Client
}

// NewHTTPOracle builds an HTTPOracle with the given per-request timeout.
func NewHTTPOracle(urlTemplate string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		URLTemplate: urlTemplate,
		Client:      &http.Client{Timeout: timeout},
	}
}

func (o *HTTPOracle) Verify(ctx context.Context, uid, paste string) (bool, error) {
	if paste == "" || len(paste) > 50 {
		return false, nil
	}
	url := strings.ReplaceAll(o.URLTemplate, "{paste}", paste)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, nil
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		// Network failure against an external oracle is not our fault
		// to surface as 500; the caller treats this as "reject".
		return false, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, nil
	}
	m := pasteDataRe.FindStringSubmatch(string(body))
	if m == nil {
		return false, nil
	}
	return m[1] == uid, nil
}
