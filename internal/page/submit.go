package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chromedp/chromedp"

	"github.com/GriffinCanCode/coordwatch/internal/coords"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
)

// Submitter writes a coordinate into the host page and triggers its search.
// It reports false when the page could not take the coordinate.
type Submitter interface {
	Submit(ctx context.Context, c coords.Coordinate) bool
}

// Selectors locate the search form. The four fields are element IDs; the
// submit button is matched inside the form.
type Selectors struct {
	Form   string
	YValue string
	YUnit  string
	XValue string
	XUnit  string
	Submit string
}

// DefaultSelectors matches the map page's search form.
func DefaultSelectors() Selectors {
	return Selectors{
		Form:   DefaultFormSelector,
		YValue: DefaultYValueID,
		YUnit:  DefaultYUnitID,
		XValue: DefaultXValueID,
		XUnit:  DefaultXUnitID,
		Submit: DefaultSubmitButton,
	}
}

// submitResult is what the in-page script reports back.
type submitResult struct {
	Submitted bool     `json:"submitted"`
	Missing   []string `json:"missing"`
}

type evalFunc func(ctx context.Context, script string, res any) error

// FormSubmitter fills and submits the search form through a browser tab.
type FormSubmitter struct {
	sel  Selectors
	eval evalFunc
}

// NewFormSubmitter creates a submitter on tab.
func NewFormSubmitter(tab *Tab, sel Selectors) *FormSubmitter {
	return &FormSubmitter{
		sel: sel,
		eval: func(ctx context.Context, script string, res any) error {
			tabCtx, err := tab.Open(ctx)
			if err != nil {
				return err
			}
			runCtx, cancel := context.WithTimeout(tabCtx, SubmitTimeout)
			defer cancel()
			stop := context.AfterFunc(ctx, cancel)
			defer stop()
			return chromedp.Run(runCtx, chromedp.Evaluate(script, res))
		},
	}
}

// Submit sets the four form fields and clicks submit in one script run, so
// the page never sees a half-filled form. Missing elements skip the
// submission.
func (s *FormSubmitter) Submit(ctx context.Context, c coords.Coordinate) bool {
	log := trace.Logger(ctx)

	var res submitResult
	if err := s.eval(ctx, submitScript(s.sel, c), &res); err != nil {
		log.Warn("coordinate submission failed", "coordinate", c.String(), "error", err)
		return false
	}
	if !res.Submitted {
		log.Warn("search form elements not found, skipping submission", "coordinate", c.String(), "missing", res.Missing)
		return false
	}
	log.Info("coordinate submitted", "coordinate", c.String())
	return true
}

func submitScript(sel Selectors, c coords.Coordinate) string {
	q := func(s string) string {
		b, _ := json.Marshal(s)
		return string(b)
	}
	return fmt.Sprintf(`(() => {
  const form = document.querySelector(%s);
  const fields = {
    yValue: document.getElementById(%s),
    yUnit: document.getElementById(%s),
    xValue: document.getElementById(%s),
    xUnit: document.getElementById(%s),
    submit: form ? form.querySelector(%s) : null,
  };
  const missing = form ? [] : ["form"];
  for (const [name, el] of Object.entries(fields)) {
    if (!el) missing.push(name);
  }
  if (missing.length > 0) return { submitted: false, missing };
  fields.yValue.value = %s;
  fields.yUnit.value = %s;
  fields.xValue.value = %s;
  fields.xUnit.value = %s;
  fields.submit.click();
  return { submitted: true, missing: [] };
})()`,
		q(sel.Form), q(sel.YValue), q(sel.YUnit), q(sel.XValue), q(sel.XUnit), q(sel.Submit),
		q(strconv.Itoa(c.Y)), q(string(c.YUnit)), q(strconv.Itoa(c.X)), q(string(c.XUnit)))
}
