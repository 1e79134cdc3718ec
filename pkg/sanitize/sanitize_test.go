package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProperties_Scalars(t *testing.T) {
	t.Run("scalars pass through keyed by lower-cased name", func(t *testing.T) {
		out := Properties(map[string]any{
			"Company":   "Acme",
			"Employees": 42,
			"Revenue":   1250.5,
			"Active":    true,
		})

		assert.Equal(t, "Acme", out["company"])
		assert.Equal(t, 42, out["employees"])
		assert.Equal(t, 1250.5, out["revenue"])
		assert.Equal(t, true, out["active"])
	})

	t.Run("nil and empty values are dropped", func(t *testing.T) {
		out := Properties(map[string]any{
			"Phone":   nil,
			"Fax":     "",
			"Website": "https://acme.test",
		})

		assert.NotContains(t, out, "phone")
		assert.NotContains(t, out, "fax")
		assert.Equal(t, "https://acme.test", out["website"])
	})
}

func TestProperties_References(t *testing.T) {
	t.Run("lookup object flattens to id and name", func(t *testing.T) {
		out := Properties(map[string]any{
			"Owner": map[string]any{"id": "123", "name": "John Doe"},
		})

		assert.Equal(t, "123", out["owner_id"])
		assert.Equal(t, "John Doe", out["owner_name"])
		assert.NotContains(t, out, "owner")
	})

	t.Run("name fallback chain", func(t *testing.T) {
		tests := []struct {
			name     string
			ref      map[string]any
			expected string
		}{
			{"full_name wins over email", map[string]any{"id": "1", "full_name": "Jane Roe", "email": "jane@x.test"}, "Jane Roe"},
			{"email as last resort", map[string]any{"id": "1", "email": "jane@x.test"}, "jane@x.test"},
			{"first and last concatenated", map[string]any{"id": "1", "first_name": "Jane", "last_name": "Roe"}, "Jane Roe"},
			{"first only", map[string]any{"id": "1", "first_name": "Jane"}, "Jane"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				out := Properties(map[string]any{"Contact": tt.ref})
				assert.Equal(t, tt.expected, out["contact_name"])
			})
		}
	})

	t.Run("reference without name keeps id only", func(t *testing.T) {
		out := Properties(map[string]any{
			"Parent": map[string]any{"id": "p-9"},
		})

		assert.Equal(t, "p-9", out["parent_id"])
		assert.NotContains(t, out, "parent_name")
	})

	t.Run("object without id is serialized whole", func(t *testing.T) {
		out := Properties(map[string]any{
			"Address": map[string]any{"city": "Vilnius", "zip": "01100"},
		})

		s, ok := out["address"].(string)
		assert.True(t, ok)
		assert.Contains(t, s, "Vilnius")
	})
}

func TestProperties_Lists(t *testing.T) {
	t.Run("list of objects serialized to JSON string", func(t *testing.T) {
		out := Properties(map[string]any{
			"Tags": []any{map[string]any{"name": "vip"}, map[string]any{"name": "emea"}},
		})

		s, ok := out["tags"].(string)
		assert.True(t, ok)
		assert.Contains(t, s, "vip")
	})

	t.Run("empty list dropped", func(t *testing.T) {
		out := Properties(map[string]any{"Tags": []any{}})
		assert.NotContains(t, out, "tags")
	})
}
