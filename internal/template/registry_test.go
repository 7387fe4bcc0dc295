package template_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/brightline/outreach-backend/internal/errors"
	"github.com/brightline/outreach-backend/internal/template"
)

func TestLookupDefaults(t *testing.T) {
	r := template.Defaults()

	tpl, err := r.Lookup(template.InitialContactID)
	require.NoError(t, err)
	assert.Equal(t, template.InitialContactID, tpl.ID)
	assert.Contains(t, tpl.Text, "{{message}}")

	_, err = r.Lookup(template.FollowUpID)
	require.NoError(t, err)
}

func TestLookupUnknownID(t *testing.T) {
	r := template.Defaults()

	_, err := r.Lookup("seasonal-promo")
	require.Error(t, err)

	var notFound *appErrors.ErrTemplateNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "seasonal-promo", notFound.TemplateID)
	assert.True(t, appErrors.IsPermanent(err))
}

func TestWithTemplateLeavesReceiverUnchanged(t *testing.T) {
	base := template.Defaults()
	extended := base.WithTemplate(template.Template{
		ID:   "re-engage",
		Name: "Re-engage",
		Text: "Reach back out to {{name}}.",
	})

	_, err := extended.Lookup("re-engage")
	require.NoError(t, err)

	_, err = base.Lookup("re-engage")
	assert.Error(t, err, "the original registry must not see the addition")
}

func TestRenderSubstitutesVariables(t *testing.T) {
	out := template.Render("Hi {{name}}, check out {{ product }}!", map[string]string{
		"name":    "Alice",
		"product": "Widgets",
	})
	assert.Equal(t, "Hi Alice, check out Widgets!", out)
}

func TestRenderKeepsUnknownPlaceholders(t *testing.T) {
	out := template.Render("Hi {{name}}, your code is {{code}}", map[string]string{
		"name": "Alice",
	})
	assert.Equal(t, "Hi Alice, your code is {{code}}", out)
}
