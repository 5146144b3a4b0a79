package search

// FieldType classifies a tag slot and decides its legal operator set.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldBool   FieldType = "bool"
)

type slotInfo struct {
	Column string
	Type   FieldType
}

// slotTable maps the 17 recognized tag slots to their chunk columns.
// Filters referencing anything else are dropped during compilation.
var slotTable = map[string]slotInfo{
	"tag1": {Column: "tag_text1", Type: FieldText},
	"tag2": {Column: "tag_text2", Type: FieldText},
	"tag3": {Column: "tag_text3", Type: FieldText},
	"tag4": {Column: "tag_text4", Type: FieldText},
	"tag5": {Column: "tag_text5", Type: FieldText},
	"tag6": {Column: "tag_text6", Type: FieldText},
	"tag7": {Column: "tag_text7", Type: FieldText},

	"num1": {Column: "tag_num1", Type: FieldNumber},
	"num2": {Column: "tag_num2", Type: FieldNumber},
	"num3": {Column: "tag_num3", Type: FieldNumber},
	"num4": {Column: "tag_num4", Type: FieldNumber},
	"num5": {Column: "tag_num5", Type: FieldNumber},

	"date1": {Column: "tag_date1", Type: FieldDate},
	"date2": {Column: "tag_date2", Type: FieldDate},

	"bool1": {Column: "tag_bool1", Type: FieldBool},
	"bool2": {Column: "tag_bool2", Type: FieldBool},
	"bool3": {Column: "tag_bool3", Type: FieldBool},
}
