package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func supportSchema() Schema {
	return NewBankSupportAgent(nil, "", "", nil).Schema()
}

func TestStructuredSchema_ParsePartialNormalizes(t *testing.T) {
	out, ok := supportSchema().ParsePartial(`{"support_advice": "Hel`)
	require.True(t, ok)

	so := out.(*SupportOutput)
	require.Equal(t, "Hel", so.SupportAdvice)
	require.NotNil(t, so.FollowUpActions)

	text, err := Encode(so)
	require.NoError(t, err)
	require.JSONEq(t, `{"support_advice":"Hel","block_card":false,"risk_level":0,"follow_up_actions":[]}`, text)
}

func TestStructuredSchema_ParsePartialSkipsBracketsInProse(t *testing.T) {
	out, ok := supportSchema().ParsePartial(`Note [1]: {"support_advice": "Hel`)
	require.True(t, ok)
	require.Equal(t, "Hel", out.(*SupportOutput).SupportAdvice)

	// only prose so far
	_, ok = supportSchema().ParsePartial(`Note [1]: see`)
	require.False(t, ok)

	list, ok := StructuredSchema[[]string]{}.ParsePartial(`Items: ["a", "b`)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, *list.(*[]string))
}

func TestStructuredSchema_ParsePartialRejectsWrongTypes(t *testing.T) {
	_, ok := supportSchema().ParsePartial(`{"risk_level": "high"`)
	require.False(t, ok)

	_, ok = supportSchema().ParsePartial("thinking...")
	require.False(t, ok)
}

func TestStructuredSchema_ParseFinal(t *testing.T) {
	s := supportSchema()

	out, err := s.ParseFinal("```json\n{\"support_advice\":\"ok\",\"block_card\":false,\"risk_level\":2}\n```")
	require.NoError(t, err)
	require.Equal(t, 2, out.(*SupportOutput).RiskLevel)
	require.Equal(t, []string{}, out.(*SupportOutput).FollowUpActions)

	out, err = s.ParseFinal(`Here it is: {"support_advice":"ok"} hope that helps`)
	require.NoError(t, err)
	require.Equal(t, "ok", out.(*SupportOutput).SupportAdvice)

	out, err = s.ParseFinal(`Note [1]: {"support_advice":"ok","follow_up_actions":["Call us"]} [end]`)
	require.NoError(t, err)
	require.Equal(t, []string{"Call us"}, out.(*SupportOutput).FollowUpActions)

	_, err = s.ParseFinal("   ")
	require.ErrorIs(t, err, ErrEmptyResponse)

	_, err = s.ParseFinal(`{"support_advice":"ok","risk_level":2`)
	require.ErrorIs(t, err, ErrOutputFormat)

	_, err = s.ParseFinal(`{"support_advice":"ok","risk_level":11}`)
	require.ErrorIs(t, err, ErrOutputFormat)

	_, err = s.ParseFinal(`{"risk_level":1}`)
	require.ErrorIs(t, err, ErrOutputFormat)
	require.ErrorIs(t, err, ErrAgent)
}
