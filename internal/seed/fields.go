package seed

import (
	"context"
	"fmt"

	"epatra/internal/utils"
	"epatra/pkg/types"
)

type FieldConfigUpserter interface {
	UpsertFieldConfig(ctx context.Context, field *types.FieldConfiguration) error
}

func intPtr(i int) *int {
	return &i
}

// FieldConfigs describes the letter metadata form. Fields added through the
// API are left alone by SeedFieldConfigs.
var FieldConfigs = []types.FieldConfiguration{
	{ID: "AkUd59cUUnYNNPoyGnQqPRH1RO77jeXZ", Name: "office", Label: "कार्यालय / Office", FieldType: types.FieldTypeText, Required: true, DisplayOrder: 1},
	{ID: "N3Pbbw83wn33WB0OowxqAcyhZ1dMwv5b", Name: "recipientName", Label: "प्राप्तकर्त्याचे नाव / Recipient Name", FieldType: types.FieldTypeText, DisplayOrder: 2},
	{ID: "YKSpGENlKpJrIKMLMaTnN8PHAkkPu2xI", Name: "serialNumber", Label: "अनुक्रमांक / Serial Number", FieldType: types.FieldTypeText, DisplayOrder: 3},
	{ID: "WwTN3oXbcXOEsZTB0X4W0wpKh2vA33jK", Name: "letterDate", Label: "पत्राचा दिनांक / Letter Date", FieldType: types.FieldTypeDate, DisplayOrder: 4},
	{ID: "2QQ6TG8W6XnBeD5Hqw9vBmm6RYAKDO8W", Name: "receivedDate", Label: "प्राप्त दिनांक / Received Date", FieldType: types.FieldTypeDate, Required: true, DisplayOrder: 5},
	{ID: "wYJkpZmDIp1VTjjJuLzBdNJQ76ZqM4r5", Name: "author", Label: "पत्र लेखक / Author", FieldType: types.FieldTypeText, DisplayOrder: 6},
	{
		ID:        "rZjnXth60J1S08fXotWdQDkUyUbQJ7PO",
		Name:      "letterType",
		Label:     "पत्राचा प्रकार / Letter Type",
		FieldType: types.FieldTypeSelect,
		Required:  true,
		Options: types.FieldOptions{
			{Value: "तक्रार", Label: "तक्रार / Complaint"},
			{Value: "अर्ज", Label: "अर्ज / Application"},
			{Value: "परिपत्रक", Label: "परिपत्रक / Circular"},
			{Value: "आदेश", Label: "आदेश / Order"},
			{Value: "इतर", Label: "इतर / Other"},
		},
		DisplayOrder: 7,
	},
	{
		ID:           "DKQ9vI3zdqcXgId80kvvbMKEP9PgBIZ0",
		Name:         "subject",
		Label:        "विषय / Subject",
		FieldType:    types.FieldTypeTextarea,
		Required:     true,
		Validation:   &types.ValidationRules{MaxLength: intPtr(500)},
		DisplayOrder: 8,
	},
	{ID: "TzJoRHZjQpUfMhs1AsKx7xz8fMmjz4qc", Name: "topic", Label: "मुद्दा / Topic", FieldType: types.FieldTypeText, DisplayOrder: 9},
	{
		ID:           "yZkl1M32oc0rHwT5AaYjqngetatAAruP",
		Name:         "mobile",
		Label:        "मोबाईल क्रमांक / Mobile Number",
		FieldType:    types.FieldTypePhone,
		Validation:   &types.ValidationRules{Pattern: utils.StringPtr(`^[6-9][0-9]{9}$`)},
		DisplayOrder: 10,
	},
	{
		ID:           "xZRTuhMqw5kApivUI9vCl5qHUuo0uozO",
		Name:         "documentCount",
		Label:        "दस्तऐवज संख्या / Number of Documents",
		FieldType:    types.FieldTypeNumber,
		Validation:   &types.ValidationRules{Min: utils.Float64Ptr(0)},
		DefaultValue: utils.StringPtr("1"),
		DisplayOrder: 11,
	},
}

func SeedFieldConfigs(ctx context.Context, repo FieldConfigUpserter) error {
	for _, field := range FieldConfigs {
		field.IsActive = true
		if field.Options == nil {
			field.Options = types.FieldOptions{}
		}
		if err := field.Validate(); err != nil {
			return fmt.Errorf("seed field %s is invalid: %w", field.Name, err)
		}

		fmt.Printf("  Upserting field: %s\n", field.Name)
		if err := repo.UpsertFieldConfig(ctx, &field); err != nil {
			return fmt.Errorf("failed to upsert field %s: %w", field.Name, err)
		}
	}

	fmt.Printf("Field configurations seeded: %d upserted\n", len(FieldConfigs))
	return nil
}
