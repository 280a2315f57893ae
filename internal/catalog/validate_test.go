package catalog

import (
	"testing"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validDocument = dedent.Dedent(`
	[
	  {
	    "name": "Elektronarzędzia",
	    "image": "img/elektro.jpg",
	    "subcategories": [
	      {
	        "name": "Wiertarki",
	        "description": "Wiertarki udarowe i akumulatorowe",
	        "tools": [
	          {
	            "id": "wiertarka-1",
	            "name": "Wiertarka udarowa",
	            "image": "img/wiertarka.jpg",
	            "pricing": {"1-3 Dni": 40, "4-7 Dni": 35, "Kaucja": "200 zł"},
	            "deposit": 200,
	            "enabled": true
	          },
	          {
	            "id": "wiertarka-2",
	            "name": "Wkrętarka",
	            "image": "img/wkretarka.jpg",
	            "pricing": []
	          }
	        ]
	      }
	    ]
	  },
	  {
	    "name": "Ogród",
	    "image": "img/ogrod.jpg"
	  }
	]
`)

func TestValidateDocument_Valid(t *testing.T) {
	errs := ValidateDocument([]byte(validDocument))
	assert.Empty(t, errs)
}

func TestValidateDocument_Violations(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantPath string
		contains string
	}{
		{
			name:     "not json",
			doc:      `[{"name": `,
			wantPath: "",
			contains: "invalid JSON",
		},
		{
			name:     "not an array",
			doc:      `{"name": "x"}`,
			wantPath: "",
			contains: "array",
		},
		{
			name:     "trailing data",
			doc:      `[] []`,
			wantPath: "",
			contains: "unexpected data",
		},
		{
			name:     "category missing image",
			doc:      `[{"name": "Ogród"}]`,
			wantPath: "categories[0].image",
			contains: "required",
		},
		{
			name:     "category name without slug",
			doc:      `[{"name": "!!!", "image": "a.jpg"}]`,
			wantPath: "categories[0].name",
			contains: "slug",
		},
		{
			name:     "duplicate category slug",
			doc:      `[{"name": "Ogród", "image": "a.jpg"}, {"name": "ogrod", "image": "b.jpg"}]`,
			wantPath: "categories[1].name",
			contains: `duplicate category slug "ogrod" (also categories[0])`,
		},
		{
			name:     "subcategories not array",
			doc:      `[{"name": "Ogród", "image": "a.jpg", "subcategories": {}}]`,
			wantPath: "categories[0].subcategories",
			contains: "array",
		},
		{
			name: "duplicate subcategory slug",
			doc: `[{"name": "Ogród", "image": "a.jpg", "subcategories": [
				{"name": "Kosiarki"}, {"name": "KOSIARKI"}]}]`,
			wantPath: "categories[0].subcategories[1].name",
			contains: "duplicate subcategory slug",
		},
		{
			name: "description not string",
			doc: `[{"name": "Ogród", "image": "a.jpg", "subcategories": [
				{"name": "Kosiarki", "description": 5}]}]`,
			wantPath: "categories[0].subcategories[0].description",
			contains: "string",
		},
		{
			name: "tool id pattern",
			doc: `[{"name": "Ogród", "image": "a.jpg", "subcategories": [{"name": "Kosiarki", "tools": [
				{"id": "Kosiarka 1", "name": "K", "image": "k.jpg", "pricing": {}}]}]}]`,
			wantPath: "categories[0].subcategories[0].tools[0].id",
			contains: "a-z, 0-9",
		},
		{
			name: "duplicate tool id",
			doc: `[{"name": "Ogród", "image": "a.jpg", "subcategories": [{"name": "Kosiarki", "tools": [
				{"id": "k-1", "name": "K", "image": "k.jpg", "pricing": {}},
				{"id": "k-1", "name": "L", "image": "l.jpg", "pricing": {}}]}]}]`,
			wantPath: "categories[0].subcategories[0].tools[1].id",
			contains: `duplicate tool id "k-1"`,
		},
		{
			name: "enabled not bool",
			doc: `[{"name": "Ogród", "image": "a.jpg", "subcategories": [{"name": "Kosiarki", "tools": [
				{"id": "k-1", "name": "K", "image": "k.jpg", "pricing": {}, "enabled": "yes"}]}]}]`,
			wantPath: "categories[0].subcategories[0].tools[0].enabled",
			contains: "true or false",
		},
		{
			name: "missing pricing",
			doc: `[{"name": "Ogród", "image": "a.jpg", "subcategories": [{"name": "Kosiarki", "tools": [
				{"id": "k-1", "name": "K", "image": "k.jpg"}]}]}]`,
			wantPath: "categories[0].subcategories[0].tools[0].pricing",
			contains: "required",
		},
		{
			name: "pricing value bool",
			doc: `[{"name": "Ogród", "image": "a.jpg", "subcategories": [{"name": "Kosiarki", "tools": [
				{"id": "k-1", "name": "K", "image": "k.jpg", "pricing": {"1 dzień": false}}]}]}]`,
			wantPath: `categories[0].subcategories[0].tools[0].pricing["1 dzień"]`,
			contains: "number or a string",
		},
		{
			name: "pricing blank label",
			doc: `[{"name": "Ogród", "image": "a.jpg", "subcategories": [{"name": "Kosiarki", "tools": [
				{"id": "k-1", "name": "K", "image": "k.jpg", "pricing": {" ": 5}}]}]}]`,
			wantPath: "categories[0].subcategories[0].tools[0].pricing",
			contains: "labels must not be empty",
		},
		{
			name: "deposit wrong type",
			doc: `[{"name": "Ogród", "image": "a.jpg", "subcategories": [{"name": "Kosiarki", "tools": [
				{"id": "k-1", "name": "K", "image": "k.jpg", "pricing": {}, "deposit": {}}]}]}]`,
			wantPath: "categories[0].subcategories[0].tools[0].deposit",
			contains: "number or a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateDocument([]byte(tt.doc))
			require.NotEmpty(t, errs)

			msgs, ok := errs.Map()[tt.wantPath]
			require.True(t, ok, "no error at %q, got %v", tt.wantPath, errs)
			assert.Contains(t, msgs[0], tt.contains)
		})
	}
}

func TestValidateDocument_CollectsEveryViolation(t *testing.T) {
	doc := `[{"name": "", "image": ""}, {"name": "Ogród"}]`

	errs := ValidateDocument([]byte(doc))

	assert.Equal(t, []string{
		"categories[0].image",
		"categories[0].name",
		"categories[1].image",
	}, errs.Paths())
}

func TestValidate_TypedCatalog(t *testing.T) {
	c := Catalog{{
		Name:  "Ogród",
		Image: "ogrod.jpg",
		Subcategories: []Subcategory{{
			Name: "Kosiarki",
			Tools: []Tool{
				{ID: "k-1", Name: "Kosiarka", Image: "k.jpg"},
				{ID: "k-1", Name: "Kosiarka 2", Image: "k2.jpg"},
			},
		}},
	}}

	errs := Validate(c)

	require.Len(t, errs, 1)
	assert.Equal(t, "categories[0].subcategories[0].tools[1].id", errs[0].Path)
}

func TestValidate_EmptyCatalog(t *testing.T) {
	assert.Empty(t, Validate(nil))
	assert.Empty(t, Validate(Catalog{}))
}

func TestValidateTool(t *testing.T) {
	errs := ValidateTool(Tool{ID: "ok-1", Name: " ", Image: "x.jpg"}, "tool")
	require.Len(t, errs, 1)
	assert.Equal(t, "tool.name", errs[0].Path)
}

func TestValidationError_IsValidationFailed(t *testing.T) {
	err := AsValidationError(FieldErrors{{Path: "a", Message: "b"}})
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.NoError(t, AsValidationError(nil))
}
