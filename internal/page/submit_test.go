package page

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/GriffinCanCode/coordwatch/internal/coords"
)

func fakeSubmitter(res submitResult, err error, scripts *[]string) *FormSubmitter {
	return &FormSubmitter{
		sel: DefaultSelectors(),
		eval: func(_ context.Context, script string, out any) error {
			if scripts != nil {
				*scripts = append(*scripts, script)
			}
			if err != nil {
				return err
			}
			*out.(*submitResult) = res
			return nil
		},
	}
}

var sample = coords.Coordinate{Y: 37, YUnit: coords.North, X: 127, XUnit: coords.East}

func TestSubmitSuccess(t *testing.T) {
	var scripts []string
	s := fakeSubmitter(submitResult{Submitted: true}, nil, &scripts)

	if !s.Submit(context.Background(), sample) {
		t.Fatal("Submit() = false, want true")
	}
	if len(scripts) != 1 {
		t.Fatalf("scripts run = %d, want 1", len(scripts))
	}
}

func TestSubmitMissingElements(t *testing.T) {
	s := fakeSubmitter(submitResult{Missing: []string{"form", "submit"}}, nil, nil)
	if s.Submit(context.Background(), sample) {
		t.Error("Submit() = true with missing elements")
	}
}

func TestSubmitEvalError(t *testing.T) {
	s := fakeSubmitter(submitResult{}, errors.New("target closed"), nil)
	if s.Submit(context.Background(), sample) {
		t.Error("Submit() = true after evaluation error")
	}
}

func TestSubmitScript(t *testing.T) {
	script := submitScript(DefaultSelectors(), sample)

	for _, want := range []string{
		`document.querySelector(".map-search form")`,
		`document.getElementById("YValue")`,
		`document.getElementById("Yunit")`,
		`document.getElementById("XValue")`,
		`document.getElementById("Xunit")`,
		`form.querySelector("button[type=\"submit\"]")`,
		`fields.yValue.value = "37"`,
		`fields.yUnit.value = "N"`,
		`fields.xValue.value = "127"`,
		`fields.xUnit.value = "E"`,
		`fields.submit.click()`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
}

func TestSubmitScriptEscapesSelectors(t *testing.T) {
	sel := DefaultSelectors()
	sel.Form = `form[name="x"]</script>`
	script := submitScript(sel, sample)
	if strings.Contains(script, `"x"]`) {
		t.Error("selector quotes should be escaped")
	}
}

func TestDefaultSelectors(t *testing.T) {
	sel := DefaultSelectors()
	if sel.Form != ".map-search form" || sel.YValue != "YValue" || sel.XUnit != "Xunit" {
		t.Errorf("DefaultSelectors() = %+v", sel)
	}
}

func TestFormSubmitterIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("set INTEGRATION_TEST=1 to run against a local Chrome")
	}

	html := `data:text/html,<div class="map-search"><form onsubmit="event.preventDefault();document.title=YValue.value+Yunit.value">` +
		`<input id="YValue"><select id="Yunit"><option>N</option><option>S</option></select>` +
		`<input id="XValue"><select id="Xunit"><option>E</option><option>W</option></select>` +
		`<button type="submit">go</button></form></div>`
	tab := NewTab(TabConfig{URL: html, Headless: true})
	defer tab.Close()

	s := NewFormSubmitter(tab, DefaultSelectors())
	if !s.Submit(context.Background(), sample) {
		t.Fatal("Submit() = false against a complete form")
	}
}
