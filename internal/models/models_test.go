package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func parseField(t *testing.T, model interface{}, name string) *schema.Field {
	t.Helper()

	parsed, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	field := parsed.LookUpField(name)
	require.NotNil(t, field, "missing field %s", name)
	return field
}

func TestUnboundedBuildOutputColumns(t *testing.T) {
	cases := []struct {
		model interface{}
		field string
	}{
		{&Feedback{}, "Text"},
		{&Feedback{}, "DetailText"},
		{&ProgrammingSubmission{}, "CommitHash"},
	}

	for _, tc := range cases {
		field := parseField(t, tc.model, tc.field)
		require.Equal(t, "text", field.TagSettings["TYPE"], tc.field)
		require.Zero(t, field.Size, tc.field)
	}
}
