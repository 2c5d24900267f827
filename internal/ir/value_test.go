package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsJSONRoundTrip(t *testing.T) {
	in := Fields{
		"project_name": Str("Galaxy Bio GMP Upgrade"),
		"is_active":    Int(1),
		"billable":     Bool(false),
		"tasks": List{
			Fields{"subject": Str("Facility Assessment")},
		},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Fields
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, Equal(in, out))
}

func TestFieldsUnmarshalRejectsFloats(t *testing.T) {
	var out Fields
	err := json.Unmarshal([]byte(`{"rate": 65000.5}`), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")
}

func TestFieldsUnmarshalNull(t *testing.T) {
	var out Fields
	require.NoError(t, json.Unmarshal([]byte(`{"parent_company": null}`), &out))
	assert.Equal(t, Null{}, out["parent_company"])
}

func TestFieldsUnmarshalLargeInt(t *testing.T) {
	var out Fields
	require.NoError(t, json.Unmarshal([]byte(`{"n": 9007199254740993}`), &out))
	assert.Equal(t, Int(9007199254740993), out["n"])
}

func TestMerge(t *testing.T) {
	base := Fields{"abbr": Str("GB"), "is_group": Int(0), "parent_company": Str("Galaxy Holding")}
	merged := base.Merge(Fields{"abbr": Str("GB2"), "parent_company": Null{}, "domain": Str("Manufacturing")})

	assert.Equal(t, Fields{"abbr": Str("GB2"), "is_group": Int(0), "domain": Str("Manufacturing")}, merged)
	assert.Equal(t, Str("GB"), base["abbr"], "Merge must not modify its receiver")
}

func TestMergeDeepCopies(t *testing.T) {
	tasks := List{Fields{"subject": Str("A")}}
	merged := Fields{}.Merge(Fields{"tasks": tasks})

	merged["tasks"].(List)[0].(Fields)["subject"] = Str("B")
	assert.Equal(t, Str("A"), tasks[0].(Fields)["subject"])
}

func TestMatches(t *testing.T) {
	rec := Fields{"company": Str("Galaxy Bio"), "permlevel": Int(0), "enabled": Bool(true)}

	assert.True(t, rec.Matches(Fields{"company": Str("Galaxy Bio")}))
	assert.True(t, rec.Matches(Fields{"company": Str("Galaxy Bio"), "permlevel": Int(0)}))
	assert.False(t, rec.Matches(Fields{"company": Str("Galaxy Software")}))
	assert.False(t, rec.Matches(Fields{"missing": Str("x")}))
	assert.False(t, rec.Matches(Fields{"enabled": Int(1)}), "Int must not match Bool")
}

func TestDiff(t *testing.T) {
	a := Fields{"abbr": Str("GB"), "is_group": Int(0)}
	b := Fields{"abbr": Str("GB2"), "is_group": Int(0), "domain": Str("Services")}

	assert.Equal(t, []string{"abbr", "domain"}, a.Diff(b))
	assert.Empty(t, a.Diff(a.Clone()))
}

func TestFromAnyAndToAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"qty":   5,
		"code":  "BIO-INS-001",
		"items": []any{map[string]any{"rate": 18000}},
		"gone":  nil,
	})
	require.NoError(t, err)

	fields := v.(Fields)
	assert.Equal(t, Int(5), fields["qty"])
	assert.Equal(t, Null{}, fields["gone"])

	back := ToAny(fields).(map[string]any)
	assert.Equal(t, int64(5), back["qty"])
	assert.Equal(t, []any{map[string]any{"rate": int64(18000)}}, back["items"])

	_, err = FromAny(map[string]any{"rate": 1.25})
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	spec := RecordSpec{
		Kind:   "Custom DocPerm",
		Lookup: Fields{"role": Str("Galaxy Legal"), "parent": Str("Lead"), "permlevel": Int(0)},
	}
	assert.Equal(t, "Custom DocPerm{parent=Lead, permlevel=0, role=Galaxy Legal}", spec.Label())
}

func TestInsertFieldsPrecedence(t *testing.T) {
	spec := RecordSpec{
		Kind:       "Company",
		Lookup:     Fields{"company_name": Str("Galaxy Pay")},
		CreateOnly: Fields{"is_active": Int(0), "abbr": Str("XX")},
		Desired:    Fields{"abbr": Str("GP")},
	}

	assert.Equal(t, Fields{
		"company_name": Str("Galaxy Pay"),
		"is_active":    Int(0),
		"abbr":         Str("GP"),
	}, spec.InsertFields())
}

func TestNormalize(t *testing.T) {
	decomposed := "Jose\u0301 Pharma"
	in := Fields{
		"customer_name": Str(decomposed),
		"contacts":      List{Fields{"first_name": Str(decomposed)}},
		"credit_days":   Int(30),
	}

	out := in.Normalize()
	assert.Equal(t, Str("Jos\u00e9 Pharma"), out["customer_name"])
	assert.Equal(t, Str("Jos\u00e9 Pharma"), out["contacts"].(List)[0].(Fields)["first_name"])
	assert.Equal(t, Int(30), out["credit_days"])
	assert.Equal(t, Str(decomposed), in["customer_name"], "Normalize must not modify its receiver")
	assert.Nil(t, Fields(nil).Normalize())
}
