package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTemplateAcceptsAllWhitelistedVariables(t *testing.T) {
	body := "{name} {first_name} {last_name} {date} {date_before} {days_until} {phone_pay} {name_pay}"
	assert.NoError(t, ValidateTemplate(body))
}

func TestValidateTemplateRejectsUnknownVariable(t *testing.T) {
	err := ValidateTemplate("Привет, {first_name}! Сегодня {unknown_var}.")
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok, "expected *ValidationError, got %T", err)
	assert.Equal(t, []string{"unknown_var"}, verr.InvalidVariables)
	assert.Empty(t, verr.InvalidTags)
}

func TestValidateTemplateReportsEveryOffendingVariableOnce(t *testing.T) {
	err := ValidateTemplate("{bad_one} {bad_two} {bad_one} {name}")
	require.Error(t, err)

	verr := err.(*ValidationError)
	assert.Equal(t, []string{"bad_one", "bad_two"}, verr.InvalidVariables)
}

func TestValidateTemplateAcceptsWhitelistedTags(t *testing.T) {
	body := `<b>x</b> <strong>x</strong> <i>x</i> <em>x</em> <u>x</u> <ins>x</ins>` +
		` <s>x</s> <strike>x</strike> <del>x</del> <code>x</code> <pre>x</pre>` +
		` <tg-spoiler>x</tg-spoiler> <blockquote>x</blockquote> <a href="https://example.com">x</a>`
	assert.NoError(t, ValidateTemplate(body))
}

func TestValidateTemplateRejectsUnknownTag(t *testing.T) {
	err := ValidateTemplate("<b>Привет</b> <script>alert(1)</script>")
	require.Error(t, err)

	verr := err.(*ValidationError)
	assert.Equal(t, []string{"script"}, verr.InvalidTags)
	assert.Empty(t, verr.InvalidVariables)
}

func TestValidateTemplateTagCheckIsCaseInsensitive(t *testing.T) {
	assert.NoError(t, ValidateTemplate("<B>жирный</B>"))
}

func TestValidateTemplateReportsVariablesAndTagsTogether(t *testing.T) {
	err := ValidateTemplate("<div>{oops}</div>")
	require.Error(t, err)

	verr := err.(*ValidationError)
	assert.Equal(t, []string{"oops"}, verr.InvalidVariables)
	assert.Equal(t, []string{"div"}, verr.InvalidTags)
	assert.Contains(t, verr.Error(), "oops")
	assert.Contains(t, verr.Error(), "div")
}

func TestValidateTemplatePlainTextIsValid(t *testing.T) {
	assert.NoError(t, ValidateTemplate("Просто текст без переменных и тегов."))
}
