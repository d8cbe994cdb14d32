// Package cursor polls the DOM's computed cursor style at a point and
// deduplicates unchanged results so the bus is not spammed with repeated
// browser:cursor frames.
package cursor

import (
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/runtime"

	"github.com/vibepilot/agentd/internal/cdp"
)

const defaultCursor = "default"

// probeExprTemplate, once formatted with (x, y), evaluates to the computed `cursor` CSS value of whatever
// element is under (x, y), falling back to "default" when nothing is
// there.
const probeExprTemplate = `(function(){
	var el = document.elementFromPoint(%f, %f);
	if (!el) return "default";
	var v = window.getComputedStyle(el).cursor;
	return v || "default";
})()`

// Probe tracks the last reported cursor value so repeated identical probes
// can be deduplicated. eval is swappable so tests can exercise the dedup
// logic without a live CDP connection.
type Probe struct {
	eval       func(x, y float64) string
	lastCursor string
}

// New creates a Probe bound to client.
func New(client *cdp.Client) *Probe {
	return &Probe{eval: func(x, y float64) string { return evaluateViaCDP(client, x, y) }}
}

// At evaluates the cursor style at (x, y). It returns ("", false) when the
// value is unchanged from the previous call (so the caller sends nothing);
// otherwise it returns the new value and true. Any evaluation failure
// yields "default" (and true, if that's a change).
func (p *Probe) At(x, y float64) (string, bool) {
	value := p.eval(x, y)
	if value == p.lastCursor {
		return "", false
	}
	p.lastCursor = value
	return value, true
}

func evaluateViaCDP(client *cdp.Client, x, y float64) string {
	expr := fmt.Sprintf(probeExprTemplate, x, y)

	var result string
	action := runtime.Evaluate(expr).WithReturnByValue(true)
	res, _, err := action.Do(client.Context())
	if err != nil || res == nil {
		return defaultCursor
	}
	if err := json.Unmarshal(res.Value, &result); err != nil || result == "" {
		return defaultCursor
	}
	return result
}
