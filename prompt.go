package guidancecore

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pensionlab/guidancecore/errors"
	"github.com/pensionlab/guidancecore/retriever"
)

var (
	//go:embed data/prompts/context.md.tmpl
	contextInst     string
	contextInstTmpl = template.Must(template.New("context").Funcs(sprig.FuncMap()).Parse(contextInst))
)

type contextPromptValues struct {
	Bundle *retriever.ContextBundle
}

// RenderContextPrompt turns a retrieved bundle into the prompt section
// handed to the guidance generation model. Empty categories render
// nothing; a fully empty bundle renders only the header.
func RenderContextPrompt(bundle *retriever.ContextBundle) (string, error) {
	if bundle == nil {
		return "", errors.Wrap(errors.ErrInvalidArgument, "bundle is nil")
	}

	var buf strings.Builder
	if err := contextInstTmpl.Execute(&buf, &contextPromptValues{Bundle: bundle}); err != nil {
		return "", errors.Wrapf(err, "failed to render context prompt")
	}
	return buf.String(), nil
}
